package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verse-scribe/internal/config"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/types"
)

func openTestClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "default",
		User:     "default",
		Password: "",
	}

	db, err := NewClickHouseDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunClickHouseMigrations(testContext(t), db, "../../"+DefaultClickHouseMigrationsPath); err != nil {
		t.Skipf("Skipping test - ClickHouse migrations failed: %v", err)
	}
	return db
}

func TestClickHouseDB_Ping(t *testing.T) {
	db := openTestClickHouse(t)

	if err := db.Ping(testContext(t)); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Conn() == nil {
		t.Error("Conn() returned nil")
	}
}

func TestEventRepository_InsertRecent(t *testing.T) {
	db := openTestClickHouse(t)
	repo := NewEventRepository(db)
	ctx := testContext(t)
	userID := uuid.New().String()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var events []*models.TranscriptionEvent
	for i := 1; i <= 3; i++ {
		rec := types.TranscriptionRecord{
			Mode: types.ModeSequential, Book: "genesis", Chapter: 1, Verse: i,
			CreditsAwarded: 10, LocalDate: "2026-03-14",
		}
		events = append(events, models.NewTranscriptionEvent(userID, rec, base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, repo.Insert(ctx, events...))

	recent, err := repo.Recent(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].Verse, "newest first")
	assert.Equal(t, 2, recent[1].Verse)
	assert.Equal(t, "2026-03-14", recent[0].LocalDate)
	assert.Equal(t, types.ModeSequential, recent[0].Mode)
}

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- comment only
CREATE TABLE a (
    x UInt8
) ENGINE = Memory;

CREATE TABLE b (y String) ENGINE = Memory;
SELECT 1`

	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "CREATE TABLE b (y String) ENGINE = Memory", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])

	assert.Empty(t, splitSQLStatements("-- nothing\n\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
