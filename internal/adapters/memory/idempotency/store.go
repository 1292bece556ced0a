package idempotency

import (
	"context"
	"sync"
	"time"

	clockport "github.com/devlogs/devlogs-api/internal/ports/out/clock"
	"github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// Records older than the retention window are neither returned nor kept.
// It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	m         map[idempotency.Fingerprint]idempotency.Record
	clk       clockport.Clock
	retention time.Duration
}

func NewStore(clk clockport.Clock, retention time.Duration) *Store {
	if retention <= 0 {
		retention = idempotency.DefaultRetention
	}
	return &Store{
		m:         make(map[idempotency.Fingerprint]idempotency.Record),
		clk:       clk,
		retention: retention,
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	if s.expired(rec) {
		delete(s.m, fp)
		return idempotency.Record{}, false, nil
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clk.Now().UTC()
	}
	rec.Body = append([]byte(nil), rec.Body...)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.m {
		if s.expired(v) {
			delete(s.m, k)
		}
	}
	s.m[fp] = rec
	return nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	return s.clk.Now().Sub(rec.CreatedAt) > s.retention
}
