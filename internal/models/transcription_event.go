package models

import (
	"time"

	"github.com/verse-scribe/internal/types"
)

// TranscriptionEvent is one row of the append-only completion log
type TranscriptionEvent struct {
	UserID    string     `json:"userId" ch:"user_id"`
	Mode      types.Mode `json:"mode" ch:"mode"`
	Book      string     `json:"book" ch:"book"`
	Chapter   int        `json:"chapter" ch:"chapter"`
	Verse     int        `json:"verse" ch:"verse"`
	Credits   int        `json:"credits" ch:"credits"`
	LocalDate string     `json:"localDate" ch:"local_date"`
	CreatedAt time.Time  `json:"createdAt" ch:"created_at"`
}

// NewTranscriptionEvent builds the log row for a persisted record
func NewTranscriptionEvent(userID string, rec types.TranscriptionRecord, at time.Time) *TranscriptionEvent {
	return &TranscriptionEvent{
		UserID:    userID,
		Mode:      rec.Mode,
		Book:      rec.Book,
		Chapter:   rec.Chapter,
		Verse:     rec.Verse,
		Credits:   rec.CreditsAwarded,
		LocalDate: rec.LocalDate,
		CreatedAt: at.UTC(),
	}
}
