package logrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/devlogs/devlogs-api/internal/adapters/postgres"
	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/ports/out/logrepo"
)

// Repo is a Postgres implementation of logrepo.Repository.
type Repo struct {
	db postgres.DB
}

func NewRepo(db postgres.DB) *Repo {
	return &Repo{db: db}
}

const selectColumns = `
	SELECT l.id, l.user_id, l.project_id, l.log_date, l.title, l.content_json, l.tags,
	       l.visibility, l.ai_summary, l.created_at, l.updated_at, p.name, p.color
	FROM dev_logs l
	LEFT JOIN projects p ON p.id = l.project_id
`

func (r *Repo) Create(ctx context.Context, l domain.DevLog) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	id, err := uuid.Parse(string(l.ID))
	if err != nil {
		return logrepo.ErrAlreadyExists
	}
	owner, pid, ok := parseOwnerProject(l)
	if !ok {
		return logrepo.ErrNotFound
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO dev_logs (
			id, user_id, project_id, log_date, title, content_json, tags,
			visibility, ai_summary, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		id,
		owner,
		pid,
		domain.DateOnly(l.LogDate),
		l.Title,
		contentOrEmpty(l.Content),
		tagsOrEmpty(l.Tags),
		string(l.Visibility),
		l.AISummary,
		l.CreatedAt.UTC(),
		l.UpdatedAt.UTC(),
	)
	if err != nil {
		switch {
		case postgres.IsCode(err, postgres.UniqueViolationCode):
			return logrepo.ErrAlreadyExists
		case postgres.IsCode(err, postgres.ForeignKeyViolationCode):
			return logrepo.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, l domain.DevLog) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	id, err := uuid.Parse(string(l.ID))
	if err != nil {
		return logrepo.ErrNotFound
	}
	owner, pid, ok := parseOwnerProject(l)
	if !ok {
		return logrepo.ErrNotFound
	}
	ct, err := r.db.Exec(ctx, `
		UPDATE dev_logs
		SET project_id = $3,
		    log_date = $4,
		    title = $5,
		    content_json = $6,
		    tags = $7,
		    visibility = $8,
		    ai_summary = $9,
		    updated_at = $10
		WHERE id = $1 AND user_id = $2
	`,
		id,
		owner,
		pid,
		domain.DateOnly(l.LogDate),
		l.Title,
		contentOrEmpty(l.Content),
		tagsOrEmpty(l.Tags),
		string(l.Visibility),
		l.AISummary,
		l.UpdatedAt.UTC(),
	)
	if err != nil {
		if postgres.IsCode(err, postgres.ForeignKeyViolationCode) {
			return logrepo.ErrNotFound
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return logrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, owner domain.UserID, id domain.LogID) (domain.DevLog, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return domain.DevLog{}, err
	}
	lid, uid, ok := parseIDs(owner, id)
	if !ok {
		return domain.DevLog{}, logrepo.ErrNotFound
	}
	row := r.db.QueryRow(ctx, selectColumns+` WHERE l.id = $1 AND l.user_id = $2`, lid, uid)
	return scanLog(row)
}

func (r *Repo) Delete(ctx context.Context, owner domain.UserID, id domain.LogID) error {
	if err := postgres.CheckDB(r.db); err != nil {
		return err
	}
	lid, uid, ok := parseIDs(owner, id)
	if !ok {
		return logrepo.ErrNotFound
	}
	ct, err := r.db.Exec(ctx, `DELETE FROM dev_logs WHERE id = $1 AND user_id = $2`, lid, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return logrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context, owner domain.UserID, f logrepo.Filter, p logrepo.Page) ([]domain.DevLog, int, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return nil, 0, err
	}
	uid, err := uuid.Parse(string(owner))
	if err != nil {
		return []domain.DevLog{}, 0, nil
	}
	where, args, ok := buildWhere(uid, f)
	if !ok {
		return []domain.DevLog{}, 0, nil
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM dev_logs l WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + ` WHERE ` + where + ` ORDER BY l.log_date DESC, l.created_at DESC, l.id ASC`
	if p.Size > 0 {
		number := max(p.Number, 1)
		args = append(args, p.Size, (number-1)*p.Size)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.DevLog, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (r *Repo) Stats(ctx context.Context, owner domain.UserID, from, to time.Time) (logrepo.PeriodStats, error) {
	if err := postgres.CheckDB(r.db); err != nil {
		return logrepo.PeriodStats{}, err
	}
	uid, err := uuid.Parse(string(owner))
	if err != nil {
		return logrepo.PeriodStats{}, nil
	}
	var (
		count, projects int64
		hours           float64
	)
	err = r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(DISTINCT project_id),
		       COALESCE(sum(
		           CASE WHEN jsonb_typeof(content_json -> 'time_spent_hours') = 'number'
		                THEN (content_json ->> 'time_spent_hours')::float8
		           END
		       ), 0)::float8
		FROM dev_logs
		WHERE user_id = $1 AND log_date BETWEEN $2 AND $3
	`, uid, domain.DateOnly(from), domain.DateOnly(to)).Scan(&count, &projects, &hours)
	if err != nil {
		return logrepo.PeriodStats{}, err
	}
	return logrepo.PeriodStats{LogCount: int(count), ActiveProjects: int(projects), HoursLogged: hours}, nil
}

// buildWhere renders the filter as a WHERE clause over dev_logs aliased as l.
// ok=false means the filter cannot match anything.
func buildWhere(owner uuid.UUID, f logrepo.Filter) (string, []any, bool) {
	var sb strings.Builder
	args := []any{owner}
	sb.WriteString("l.user_id = $1")

	if f.ProjectID != nil {
		pid, err := uuid.Parse(string(*f.ProjectID))
		if err != nil {
			return "", nil, false
		}
		args = append(args, pid)
		fmt.Fprintf(&sb, " AND l.project_id = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, domain.DateOnly(*f.From))
		fmt.Fprintf(&sb, " AND l.log_date >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, domain.DateOnly(*f.To))
		fmt.Fprintf(&sb, " AND l.log_date <= $%d", len(args))
	}
	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		fmt.Fprintf(&sb, " AND l.tags && $%d::text[]", len(args))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		fmt.Fprintf(&sb, " AND (l.title ILIKE $%d OR l.content_json ->> 'summary' ILIKE $%d)", len(args), len(args))
	}
	return sb.String(), args, true
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func parseIDs(owner domain.UserID, id domain.LogID) (uuid.UUID, uuid.UUID, bool) {
	lid, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	uid, err := uuid.Parse(string(owner))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return lid, uid, true
}

func parseOwnerProject(l domain.DevLog) (uuid.UUID, uuid.UUID, bool) {
	uid, err := uuid.Parse(string(l.UserID))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	pid, err := uuid.Parse(string(l.ProjectID))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return uid, pid, true
}

func contentOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanLog(row pgx.Row) (domain.DevLog, error) {
	var (
		id, owner, project   uuid.UUID
		logDate              time.Time
		title, visibility    string
		content              map[string]any
		tags                 []string
		aiSummary            *string
		createdAt, updatedAt time.Time
		projectName          *string
		projectColor         *string
	)
	err := row.Scan(&id, &owner, &project, &logDate, &title, &content, &tags,
		&visibility, &aiSummary, &createdAt, &updatedAt, &projectName, &projectColor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DevLog{}, logrepo.ErrNotFound
		}
		return domain.DevLog{}, err
	}
	if tags == nil {
		tags = []string{}
	}
	return domain.DevLog{
		ID:           domain.LogID(id.String()),
		UserID:       domain.UserID(owner.String()),
		ProjectID:    domain.ProjectID(project.String()),
		LogDate:      domain.DateOnly(logDate),
		Title:        title,
		Content:      content,
		Tags:         tags,
		Visibility:   domain.Visibility(visibility),
		AISummary:    aiSummary,
		ProjectName:  projectName,
		ProjectColor: projectColor,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}, nil
}
