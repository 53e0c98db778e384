package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/verse-scribe/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestCache returns a cache service backed by miniredis
func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheService(NewRedisCacheFromClient(client), 30*time.Second, 24*time.Hour), mr
}

func testPostgresConfig() *config.PostgresConfig {
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "scribe_dev_password"
	}
	return &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "verse_scribe_test",
		User:           "scribe",
		Password:       password,
		MaxConnections: 5,
	}
}

// openTestPostgres connects to the integration database, migrates it and
// clears every table. The test is skipped in short mode or when Postgres
// is not reachable.
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(PostgresURL(cfg), "../../"+DefaultMigrationsPath); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
	}

	_, err = db.Pool().Exec(testContext(t),
		`TRUNCATE completed_verses, transcriptions_progress, daily_credits, bible_verses, users`)
	require.NoError(t, err)

	return db
}
