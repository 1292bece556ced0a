package domain

import "time"

// DefaultProjectColor is applied when a project is created without a color.
const DefaultProjectColor = "#3B82F6"

// Project groups dev log entries.
type Project struct {
	ID          ProjectID
	UserID      UserID
	Name        string
	Description *string
	Color       string

	// LogCount is a read model field populated by list queries.
	LogCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
