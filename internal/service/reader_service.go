package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/verse-scribe/internal/bible"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/transcription"
	"github.com/verse-scribe/internal/types"
)

// Search limits
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
	MaxSearchQuery     = 100
)

// ReaderService serves chapters for reading with completion marks, and
// verse search
type ReaderService struct {
	source       ChapterSource
	verses       VerseStore
	stats        *StatsService
	translations Translations
}

// NewReaderService creates a new reader service
func NewReaderService(source ChapterSource, verses VerseStore, stats *StatsService, translations Translations) *ReaderService {
	return &ReaderService{source: source, verses: verses, stats: stats, translations: translations}
}

// ReaderChapter is one chapter annotated with the user's completions
type ReaderChapter struct {
	Translation    string                      `json:"translation"`
	Book           bible.Book                  `json:"book"`
	Chapter        int                         `json:"chapter"`
	Verses         []transcription.ReaderVerse `json:"verses"`
	CompletedCount int                         `json:"completedCount"`
	Next           *bible.Position             `json:"next,omitempty"`
}

// Chapter loads a chapter and merges the completed flags. Completion marks
// are omitted rather than failing the read when the progress ledger is down.
func (r *ReaderService) Chapter(ctx context.Context, userID, translation, bookName string, chapter int) (*ReaderChapter, error) {
	translation, err := r.translations.Resolve(translation)
	if err != nil {
		return nil, err
	}
	book, ok := bible.LookupBook(bookName)
	if !ok {
		return nil, apperrors.NewInvalidParameterError("book", "unknown book "+bookName)
	}

	verses, err := r.source.GetChapter(ctx, translation, book, chapter)
	if err != nil {
		return nil, err
	}

	completed, err := r.stats.CompletedKeys(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).WithUser(userID).WithError(err).Warn("failed to load completed verses for reader")
		completed = types.NewCompletedSet()
	}

	out := &ReaderChapter{
		Translation:    translation,
		Book:           book,
		Chapter:        chapter,
		Verses:         transcription.MergeCompleted(verses, completed),
		CompletedCount: transcription.CountCompleted(verses, completed),
	}
	if next, ok := bible.NextChapter(book.ID, chapter); ok {
		out.Next = &next
	}
	return out, nil
}

// Search finds verses containing query
func (r *ReaderService) Search(ctx context.Context, translation, query string, limit int) ([]types.Verse, error) {
	translation, err := r.translations.Resolve(translation)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewInvalidParameterError("q", "must not be empty")
	}
	if utf8.RuneCountInString(query) > MaxSearchQuery {
		return nil, apperrors.NewInvalidParameterError("q", "too long")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	verses, err := r.verses.Search(ctx, translation, query, limit)
	if err != nil {
		return nil, dbError("search verses", err)
	}
	if verses == nil {
		verses = []types.Verse{}
	}
	return verses, nil
}
