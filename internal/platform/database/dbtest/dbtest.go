// Package dbtest starts a migrated PostgreSQL container for integration tests.
package dbtest

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/exam-analyzer/internal/platform/config"
	"github.com/p-n-ai/exam-analyzer/internal/platform/database"
)

const image = "postgres:16-alpine"

// Start runs a throwaway PostgreSQL server with the schema applied and
// returns its URL and a pool. The test is skipped in short mode or when no
// container runtime is available.
func Start(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("exam_analyzer"),
		postgres.WithUsername("exam"),
		postgres.WithPassword("exam"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := database.New(ctx, config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1, AutoMigrate: true})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	return url, db.Pool
}
