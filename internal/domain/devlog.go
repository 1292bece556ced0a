package domain

import "time"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityTeam, VisibilityPublic:
		return true
	}
	return false
}

// Well-known keys inside DevLog.Content.
const (
	ContentSummary        = "summary"
	ContentTasksCompleted = "tasks_completed"
	ContentTimeSpentHours = "time_spent_hours"
)

// DevLog is a single dated log entry.
type DevLog struct {
	ID        LogID
	UserID    UserID
	ProjectID ProjectID

	// LogDate has date-only semantics (UTC midnight).
	LogDate time.Time
	Title   string
	// Content is free-form structured JSON; see the Content* keys for the fields we read.
	Content    map[string]any
	Tags       []string
	Visibility Visibility
	AISummary  *string

	// ProjectName and ProjectColor are read model fields joined from the project.
	ProjectName  *string
	ProjectColor *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary returns content_json.summary when it is a string.
func (l DevLog) Summary() string {
	s, _ := l.Content[ContentSummary].(string)
	return s
}

// HoursSpent returns content_json.time_spent_hours, or 0 when absent or not numeric.
func (l DevLog) HoursSpent() float64 {
	switch v := l.Content[ContentTimeSpentHours].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// TasksCompleted returns content_json.tasks_completed entries that are strings.
func (l DevLog) TasksCompleted() []string {
	raw, ok := l.Content[ContentTasksCompleted].([]any)
	if !ok {
		if ss, ok := l.Content[ContentTasksCompleted].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DashboardStats aggregates logs over a period and compares with the previous period.
type DashboardStats struct {
	LogsThisWeek   int
	LogsChange     int
	ActiveProjects int
	HoursLogged    float64
	HoursChange    float64
}
