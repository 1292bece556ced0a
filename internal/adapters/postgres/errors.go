package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the adapters react to.
const (
	UniqueViolationCode     = "23505"
	ForeignKeyViolationCode = "23503"
	UndefinedFunctionCode   = "42883"
	InvalidTextCode         = "22P02"
)

// AsPgError unwraps err to a *pgconn.PgError.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCode reports whether err is a Postgres error with the given SQLSTATE.
func IsCode(err error, code string) bool {
	pe, ok := AsPgError(err)
	return ok && pe.Code == code
}
