package devlogs

import (
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// exportLimit caps the number of entries in one export.
	exportLimit = 1000
)

type CreateInput struct {
	ProjectID domain.ProjectID
	// LogDate defaults to today (UTC) when nil.
	LogDate    *time.Time
	Title      string
	Content    map[string]any
	Tags       []string
	Visibility *domain.Visibility
}

// UpdateInput is a partial update. Nil fields are left untouched; a non-nil empty Tags clears them.
type UpdateInput struct {
	ProjectID  *domain.ProjectID
	LogDate    *time.Time
	Title      *string
	Content    map[string]any
	Tags       []string
	Visibility *domain.Visibility
}

type ListInput struct {
	ProjectID *domain.ProjectID
	From      *time.Time
	To        *time.Time
	Tags      []string
	Search    string
	// Page and PageSize fall back to 1 and DefaultPageSize when zero.
	Page     int
	PageSize int
}

type ListResult struct {
	Items    []domain.DevLog
	Total    int
	Page     int
	PageSize int
	HasMore  bool
}

type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "md"
)

type ExportInput struct {
	Format    ExportFormat
	ProjectID *domain.ProjectID
	From      *time.Time
	To        *time.Time
}

// Export is a rendered download.
type Export struct {
	ContentType string
	Filename    string
	Body        []byte
}

type DashboardInput struct {
	From *time.Time
	To   *time.Time
}
