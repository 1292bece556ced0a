package logrepo

import (
	"context"
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
)

// Filter narrows a log listing. Zero values mean "no constraint".
type Filter struct {
	ProjectID *domain.ProjectID
	// From and To are inclusive calendar dates.
	From *time.Time
	To   *time.Time
	// Tags matches entries carrying any of the tags.
	Tags []string
	// Search is a case-insensitive substring match on title or content summary.
	Search string
}

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

// PeriodStats is the raw aggregate over a date range.
type PeriodStats struct {
	LogCount       int
	ActiveProjects int
	HoursLogged    float64
}

// Repository provides access to persisted dev logs.
//
// Result ordering expectations:
// - List returns entries ordered by LogDate descending, then CreatedAt descending.
// - Returned entries carry ProjectName/ProjectColor when the project still exists.
type Repository interface {
	Create(ctx context.Context, l domain.DevLog) error
	Save(ctx context.Context, l domain.DevLog) error

	Get(ctx context.Context, owner domain.UserID, id domain.LogID) (domain.DevLog, error)
	Delete(ctx context.Context, owner domain.UserID, id domain.LogID) error

	// List returns the requested page plus the total number of matches.
	List(ctx context.Context, owner domain.UserID, f Filter, p Page) ([]domain.DevLog, int, error)

	// Stats aggregates entries whose LogDate falls within [from, to].
	Stats(ctx context.Context, owner domain.UserID, from, to time.Time) (PeriodStats, error)
}
