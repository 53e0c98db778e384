package service

import (
	"context"
	"strings"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/types"
)

// Repository interfaces for dependency injection

// ProfileStore is the profile persistence used by ProfileService
type ProfileStore interface {
	EnsureProfile(ctx context.Context, id models.ProfileIdentity) (*models.Profile, error)
	GetSummary(ctx context.Context, userID string) (*models.ProfileSummary, error)
	Update(ctx context.Context, userID string, upd models.ProfileUpdate) error
}

// CreditStore reads the daily credit ledger
type CreditStore interface {
	GetDaily(ctx context.Context, userID, date string) (credit.DailyRow, error)
	GetMonth(ctx context.Context, userID, yearMonth string) ([]credit.DailyRow, error)
}

// ProgressStore reads and writes the progress ledger
type ProgressStore interface {
	RecordTranscription(ctx context.Context, userID string, rec types.TranscriptionRecord, dailyLimit int) (*types.RecordResult, error)
	GetCompletedKeys(ctx context.Context, userID string) (types.CompletedSet, error)
	GetPointers(ctx context.Context, userID string) ([]*models.ProgressPointer, error)
}

// ChapterSource returns the ordered verses of one chapter
type ChapterSource interface {
	GetChapter(ctx context.Context, translation string, book bible.Book, chapter int) ([]types.Verse, error)
}

// VerseStore looks up individual verses and searches verse text
type VerseStore interface {
	GetVerses(ctx context.Context, translation string, keys []types.VerseKey) ([]types.Verse, error)
	Search(ctx context.Context, translation, query string, limit int) ([]types.Verse, error)
}

// EventStore is the transcription activity log
type EventStore interface {
	Insert(ctx context.Context, events ...*models.TranscriptionEvent) error
	Recent(ctx context.Context, userID string, limit int) ([]*models.TranscriptionEvent, error)
}

// Translations validates translation codes against the enabled set
type Translations struct {
	Default string
	Enabled []string
}

// Resolve returns code lowercased, or the default when code is empty
func (t Translations) Resolve(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return t.Default, nil
	}
	for _, enabled := range t.Enabled {
		if strings.EqualFold(enabled, code) {
			return code, nil
		}
	}
	return "", apperrors.NewInvalidParameterError("translation", "unsupported translation "+code)
}

// dbError keeps categorized errors and wraps everything else as a database error
func dbError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if catErr := apperrors.Categorize(err); catErr.Code != apperrors.CodeInternalError {
		return catErr
	}
	return apperrors.NewDatabaseError(operation, err)
}
