// Package testutil opens a migrated Postgres pool for adapter integration tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/devlogs/devlogs-api/internal/adapters/postgres"
	"github.com/devlogs/devlogs-api/internal/platform/logging"
)

// EnvDatabaseURL names the variable that enables Postgres integration tests.
const EnvDatabaseURL = "TEST_DATABASE_URL"

// OpenMigratedPool connects to TEST_DATABASE_URL, applies migrations, and skips the test
// when the variable is unset. Tables are truncated when the test finishes.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s not set; skipping Postgres integration test", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: url, MaxConns: 4})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	if err := postgres.Migrate(ctx, pool, logging.Discard()); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `TRUNCATE dev_logs, projects, profiles, idempotency_keys`)
		pool.Close()
	})
	return pool
}
