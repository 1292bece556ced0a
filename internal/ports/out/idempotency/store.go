package idempotency

import (
	"context"
	"time"

	"github.com/devlogs/devlogs-api/internal/domain"
)

// DefaultRetention is how long a stored response can be replayed.
const DefaultRetention = 24 * time.Hour

// Key is the value of the Idempotency-Key request header.
type Key string

// Fingerprint scopes a key to one user, one route and one request body.
// Method and Route together name the endpoint, e.g. POST and "/logs".
type Fingerprint struct {
	Key      Key
	User     domain.UserID
	Method   string
	Route    string
	BodyHash string
}

// Record is a captured response. A StatusCode of 0 marks the body-hash entry
// written when a keyed request first arrives.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store keeps captured responses so a retried create returns the original result.
// Records older than the store's retention window behave as absent.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
