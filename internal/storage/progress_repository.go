package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/types"
)

// ProgressRepository handles the resumption pointers, the completed-verse
// facts and the combined transcription write
type ProgressRepository struct {
	db *PostgresDB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *PostgresDB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// RecordTranscription writes the credit increment, the progress pointer and
// the completed-verse fact in one transaction. dailyLimit > 0 makes the
// increment conditional on the day's total staying within the limit.
func (r *ProgressRepository) RecordTranscription(ctx context.Context, userID string, rec types.TranscriptionRecord, dailyLimit int) (*types.RecordResult, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcription record: %w", err)
	}

	var total int
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		if total, err = addEarned(ctx, tx, userID, rec.LocalDate, rec.CreditsAwarded, dailyLimit); err != nil {
			return err
		}
		if err := upsertPointer(ctx, tx, userID, rec); err != nil {
			return err
		}
		return markCompleted(ctx, tx, userID, rec.Key())
	})
	if err != nil {
		return nil, err
	}

	return &types.RecordResult{NewDailyEarnedTotal: total}, nil
}

// upsertPointer moves the pointer for (user, book) to the latest completion.
// A casual completion never replaces a sequential pointer.
func upsertPointer(ctx context.Context, q querier, userID string, rec types.TranscriptionRecord) error {
	query := `
		INSERT INTO transcriptions_progress (user_id, book, chapter, verse, mode, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, book) DO UPDATE SET
			chapter    = EXCLUDED.chapter,
			verse      = EXCLUDED.verse,
			mode       = EXCLUDED.mode,
			updated_at = EXCLUDED.updated_at
		WHERE transcriptions_progress.mode = 'casual' OR EXCLUDED.mode = 'sequential'
	`

	if _, err := q.Exec(ctx, query, userID, rec.Book, rec.Chapter, rec.Verse, string(rec.Mode)); err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

// markCompleted records the verse fact; repeats keep the first timestamp
func markCompleted(ctx context.Context, q querier, userID string, key types.VerseKey) error {
	query := `
		INSERT INTO completed_verses (user_id, book, chapter, verse)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, book, chapter, verse) DO NOTHING
	`

	if _, err := q.Exec(ctx, query, userID, key.Book, key.Chapter, key.Verse); err != nil {
		return fmt.Errorf("failed to mark verse completed: %w", err)
	}
	return nil
}

// GetCompletedKeys returns every verse the user has transcribed at least once
func (r *ProgressRepository) GetCompletedKeys(ctx context.Context, userID string) (types.CompletedSet, error) {
	query := `
		SELECT book, chapter, verse
		FROM completed_verses
		WHERE user_id = $1
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed verses: %w", err)
	}
	defer rows.Close()

	set := types.NewCompletedSet()
	for rows.Next() {
		var k types.VerseKey
		if err := rows.Scan(&k.Book, &k.Chapter, &k.Verse); err != nil {
			return nil, fmt.Errorf("failed to scan completed verse: %w", err)
		}
		set.Add(k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed verses: %w", err)
	}

	return set, nil
}

// GetPointers returns the resumption pointer of every book the user started
func (r *ProgressRepository) GetPointers(ctx context.Context, userID string) ([]*models.ProgressPointer, error) {
	query := `
		SELECT user_id, book, chapter, verse, mode, updated_at
		FROM transcriptions_progress
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var out []*models.ProgressPointer
	for rows.Next() {
		var p models.ProgressPointer
		var mode string
		if err := rows.Scan(&p.UserID, &p.Book, &p.Chapter, &p.Verse, &mode, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		p.Mode = types.Mode(mode)
		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}

	return out, nil
}
