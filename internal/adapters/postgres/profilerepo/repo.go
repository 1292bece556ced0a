package profilerepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/devlogs/devlogs-api/internal/adapters/postgres"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/profilerepo"
)

// Repo is a Postgres implementation of profilerepo.Repository over the profiles table.
type Repo struct {
	db postgres.DB
}

func NewRepo(db postgres.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return domain.Profile{}, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		SELECT id, email, name, display_name, email_confirmed
		FROM profiles
		WHERE id = $1
	`, uid)
	return scanProfile(row)
}

// Update sets only the fields present in p. COALESCE keeps the stored value for nil fields.
func (r *Repo) Update(ctx context.Context, id domain.UserID, p profilerepo.Patch) (domain.Profile, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return domain.Profile{}, err
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		UPDATE profiles
		SET name = COALESCE($2, name),
		    display_name = COALESCE($3, display_name),
		    email_confirmed = COALESCE($4, email_confirmed),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, email, name, display_name, email_confirmed
	`, uid, p.Name, p.DisplayName, p.EmailConfirmed)
	return scanProfile(row)
}

func (r *Repo) MarkEmailConfirmedByEmail(ctx context.Context, email string) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		UPDATE profiles
		SET email_confirmed = true, updated_at = now()
		WHERE lower(email) = lower($1) AND NOT email_confirmed
	`, email)
	return err
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		id                uuid.UUID
		email             string
		name, displayName *string
		confirmed         bool
	)
	if err := row.Scan(&id, &email, &name, &displayName, &confirmed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, profilerepo.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return domain.Profile{
		UserID:         domain.UserID(id.String()),
		Email:          email,
		Name:           name,
		DisplayName:    displayName,
		EmailConfirmed: confirmed,
	}, nil
}
