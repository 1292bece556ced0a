package credentialrepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/devlogs/devlogs-api/internal/adapters/postgres"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/credentialrepo"
)

// Repo is a Postgres implementation of credentialrepo.Repository. Password hashes never
// leave the database: verification happens inside verify_user_password.
type Repo struct {
	db postgres.DB
}

func NewRepo(db postgres.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) VerifyPassword(ctx context.Context, email, password string) (credentialrepo.Verification, bool, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return credentialrepo.Verification{}, false, err
	}
	var (
		valid     *bool
		id        *uuid.UUID
		userEmail *string
		name      *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT is_valid, id, email, name
		FROM verify_user_password($1, $2)
	`, email, password).Scan(&valid, &id, &userEmail, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return credentialrepo.Verification{}, false, nil
		}
		return credentialrepo.Verification{}, false, err
	}

	v := credentialrepo.Verification{Valid: valid != nil && *valid, Name: name}
	if id != nil {
		v.UserID = domain.UserID(id.String())
	}
	if userEmail != nil {
		v.Email = *userEmail
	}
	if v.UserID == "" {
		v.Valid = false
	}
	return v, true, nil
}

func (r *Repo) LinkedProviders(ctx context.Context, id domain.UserID) ([]string, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return []string{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT provider
		FROM auth.identities
		WHERE user_id = $1
		ORDER BY provider
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
