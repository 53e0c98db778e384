package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/types"
)

// maxRecentEvents caps an activity history read
const maxRecentEvents = 200

// EventRepository appends transcription events to ClickHouse and reads a
// user's recent history
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert appends events in one batch
func (r *EventRepository) Insert(ctx context.Context, events ...*models.TranscriptionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO transcription_events
			(user_id, mode, book, chapter, verse, credits, local_date, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}

	for _, e := range events {
		localDate, err := time.Parse(types.DateLayout, e.LocalDate)
		if err != nil {
			return fmt.Errorf("invalid event date %q: %w", e.LocalDate, err)
		}
		if err := batch.Append(
			e.UserID,
			string(e.Mode),
			e.Book,
			uint16(e.Chapter), // #nosec G115 - validated chapter
			uint16(e.Verse),   // #nosec G115 - validated verse
			uint32(e.Credits), // #nosec G115 - non-negative award
			localDate,
			e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}
	return nil
}

// Recent returns the newest events of a user, newest first
func (r *EventRepository) Recent(ctx context.Context, userID string, limit int) ([]*models.TranscriptionEvent, error) {
	if limit <= 0 || limit > maxRecentEvents {
		limit = maxRecentEvents
	}

	rows, err := r.db.Conn().Query(ctx, `
		SELECT user_id, mode, book, chapter, verse, credits, local_date, created_at
		FROM transcription_events
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.TranscriptionEvent
	for rows.Next() {
		var (
			e                models.TranscriptionEvent
			mode             string
			chapter, verse   uint16
			credits          uint32
			localDate, createdAt time.Time
		)
		if err := rows.Scan(&e.UserID, &mode, &e.Book, &chapter, &verse, &credits, &localDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Mode = types.Mode(mode)
		e.Chapter = int(chapter)
		e.Verse = int(verse)
		e.Credits = int(credits)
		e.LocalDate = localDate.Format(types.DateLayout)
		e.CreatedAt = createdAt
		out = append(out, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return out, nil
}
