package domain

// UserID is the authenticated subject extracted from the session token ("sub").
// The identity provider issues UUIDs; we keep the canonical string form.
type UserID string

// ProjectID is an internal identifier for a project record.
type ProjectID string

// LogID is an internal identifier for a dev log entry.
type LogID string
