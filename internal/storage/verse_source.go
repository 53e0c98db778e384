package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/circuitbreaker"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/types"
)

// ChapterStore is the verse text backend behind VerseSource
type ChapterStore interface {
	GetChapter(ctx context.Context, translation string, book bible.Book, chapter int) ([]types.Verse, error)
}

// VerseSource serves chapter texts from the cache, falling back to the
// store behind a circuit breaker. Every failure surfaces as
// VERSE_SOURCE_UNAVAILABLE for that chapter only.
type VerseSource struct {
	store   ChapterStore
	cache   *CacheService
	breaker *circuitbreaker.CircuitBreaker
}

// NewVerseSource wraps store. cache may be nil.
func NewVerseSource(store ChapterStore, cache *CacheService, breaker *circuitbreaker.CircuitBreaker) *VerseSource {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("verse_source"))
	}
	return &VerseSource{store: store, cache: cache, breaker: breaker}
}

// GetChapter returns the ordered verses of one chapter
func (s *VerseSource) GetChapter(ctx context.Context, translation string, book bible.Book, chapter int) ([]types.Verse, error) {
	if !book.HasChapter(chapter) {
		return nil, apperrors.NewInvalidParameterError("chapter", "out of range for "+book.ID)
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"translation": translation,
		"book":        book.ID,
		"chapter":     chapter,
	})

	var key string
	if s.cache != nil {
		key = s.cache.ChapterKey(translation, book.ID, chapter)
		var cached []types.Verse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.WithError(err).Warn("chapter cache read failed")
		} else if hit && len(cached) > 0 {
			return cached, nil
		}
	}

	var verses []types.Verse
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		verses, err = s.store.GetChapter(ctx, translation, book, chapter)
		return err
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			logger.Warn("verse source circuit open")
		} else {
			logger.WithError(err).Error("verse source query failed")
		}
		return nil, apperrors.NewVerseSourceUnavailableError(book.ID, chapter, err)
	}

	if len(verses) == 0 {
		return nil, apperrors.NewVerseSourceUnavailableError(book.ID, chapter, errors.New("chapter has no verses"))
	}

	if s.cache != nil {
		if err := s.cache.SetChapter(ctx, key, verses); err != nil {
			logger.WithError(err).Warn("chapter cache write failed")
		}
	}

	return verses, nil
}

// BreakerState exposes the breaker state for health reporting
func (s *VerseSource) BreakerState() circuitbreaker.State {
	return s.breaker.GetState()
}

// Ping reports the source unhealthy while its breaker is open
func (s *VerseSource) Ping(ctx context.Context) error {
	if state := s.BreakerState(); state == circuitbreaker.StateOpen {
		return fmt.Errorf("verse source breaker is %s", state)
	}
	return nil
}
