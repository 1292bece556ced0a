package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlogs/devlogs-api/internal/domain"
	platformclock "github.com/devlogs/devlogs-api/internal/platform/clock"
	"github.com/devlogs/devlogs-api/internal/ports/out/idempotency"
)

func TestStore_PutThenGet(t *testing.T) {
	t.Parallel()

	clk := platformclock.NewManualClock(time.Unix(1000, 0).UTC())
	s := NewStore(clk, time.Hour)
	fp := idempotency.Fingerprint{
		Key:      "k1",
		User:     domain.UserID("u-1"),
		Method:   "POST",
		Route:    "/logs",
		BodyHash: "abc123",
	}
	rec := idempotency.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"l1"}`),
	}

	require.NoError(t, s.Put(context.Background(), fp, rec))

	got, ok, err := s.Get(context.Background(), fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 201, got.StatusCode)
	assert.Equal(t, `{"id":"l1"}`, string(got.Body))
	assert.Equal(t, clk.Now(), got.CreatedAt)

	other := fp
	other.User = "u-2"
	_, ok, err = s.Get(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ExpiresAfterRetention(t *testing.T) {
	t.Parallel()

	clk := platformclock.NewManualClock(time.Unix(1000, 0).UTC())
	s := NewStore(clk, time.Hour)
	fp := idempotency.Fingerprint{Key: "k1", User: "u-1", Method: "POST", Route: "/logs"}
	require.NoError(t, s.Put(context.Background(), fp, idempotency.Record{StatusCode: 201}))

	clk.Advance(59 * time.Minute)
	_, ok, _ := s.Get(context.Background(), fp)
	assert.True(t, ok)

	clk.Advance(2 * time.Minute)
	_, ok, _ = s.Get(context.Background(), fp)
	assert.False(t, ok)
}
