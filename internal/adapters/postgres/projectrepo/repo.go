package projectrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/devlogs/devlogs-api/internal/adapters/postgres"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/projectrepo"
)

// Repo is a Postgres implementation of projectrepo.Repository.
type Repo struct {
	db postgres.DB
}

func NewRepo(db postgres.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, p domain.Project) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return projectrepo.ErrAlreadyExists
	}
	owner, err := uuid.Parse(string(p.UserID))
	if err != nil {
		return projectrepo.ErrNotFound
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO projects (id, user_id, name, description, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, owner, p.Name, p.Description, p.Color, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		if postgres.IsCode(err, postgres.UniqueViolationCode) {
			return projectrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, p domain.Project) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	id, owner, ok := parseIDs(p.UserID, p.ID)
	if !ok {
		return projectrepo.ErrNotFound
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE projects
		SET name = $3,
		    description = $4,
		    color = $5,
		    updated_at = $6
		WHERE id = $1 AND user_id = $2
	`, id, owner, p.Name, p.Description, p.Color, p.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return projectrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, owner domain.UserID, id domain.ProjectID) (domain.Project, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return domain.Project{}, err
	}
	pid, uid, ok := parseIDs(owner, id)
	if !ok {
		return domain.Project{}, projectrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		SELECT p.id, p.user_id, p.name, p.description, p.color, p.created_at, p.updated_at,
		       (SELECT count(*) FROM dev_logs l WHERE l.project_id = p.id)
		FROM projects p
		WHERE p.id = $1 AND p.user_id = $2
	`, pid, uid)
	return scanProject(row)
}

func (r *Repo) ListWithLogCount(ctx context.Context, owner domain.UserID) ([]domain.Project, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(string(owner))
	if err != nil {
		return []domain.Project{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.user_id, p.name, p.description, p.color, p.created_at, p.updated_at,
		       count(l.id)
		FROM projects p
		LEFT JOIN dev_logs l ON l.project_id = p.id
		WHERE p.user_id = $1
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.id ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the project; dev_logs rows go with it through ON DELETE CASCADE.
func (r *Repo) Delete(ctx context.Context, owner domain.UserID, id domain.ProjectID) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	pid, uid, ok := parseIDs(owner, id)
	if !ok {
		return projectrepo.ErrNotFound
	}
	ct, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, pid, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return projectrepo.ErrNotFound
	}
	return nil
}

func parseIDs(owner domain.UserID, id domain.ProjectID) (uuid.UUID, uuid.UUID, bool) {
	pid, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	uid, err := uuid.Parse(string(owner))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return pid, uid, true
}

func scanProject(row pgx.Row) (domain.Project, error) {
	var (
		id, owner            uuid.UUID
		name, color          string
		description          *string
		createdAt, updatedAt time.Time
		logCount             int64
	)
	if err := row.Scan(&id, &owner, &name, &description, &color, &createdAt, &updatedAt, &logCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, projectrepo.ErrNotFound
		}
		return domain.Project{}, err
	}
	return domain.Project{
		ID:          domain.ProjectID(id.String()),
		UserID:      domain.UserID(owner.String()),
		Name:        name,
		Description: description,
		Color:       color,
		LogCount:    int(logCount),
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}, nil
}
