package models

import (
	"time"

	"github.com/verse-scribe/internal/types"
)

// ProgressPointer is the furthest verse completed in one book
type ProgressPointer struct {
	UserID    string     `json:"userId" db:"user_id"`
	Book      string     `json:"book" db:"book"`
	Chapter   int        `json:"chapter" db:"chapter"`
	Verse     int        `json:"verse" db:"verse"`
	Mode      types.Mode `json:"mode" db:"mode"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// Key returns the verse key the pointer refers to
func (p ProgressPointer) Key() types.VerseKey {
	return types.VerseKey{Book: p.Book, Chapter: p.Chapter, Verse: p.Verse}
}
