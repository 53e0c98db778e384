package service

import (
	"context"
	"time"

	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/observe"
	"github.com/verse-scribe/internal/ratelimit"
	"github.com/verse-scribe/internal/retry"
	"github.com/verse-scribe/internal/storage"
	"github.com/verse-scribe/internal/types"
)

// eventTimeout bounds the best-effort activity log insert
const eventTimeout = 2 * time.Second

// TranscriptionService records verse completions. Sequential awards are
// checked against the daily cap twice: first by the shared Redis counter,
// then by the conditional ledger upsert, which stays authoritative.
type TranscriptionService struct {
	progress ProgressStore
	credits  CreditStore
	capper   *ratelimit.DailyCapTracker
	events   EventStore
	cache    *storage.CacheService
	metrics  *observe.Metrics
	rules    credit.Rules
	retry    *retry.RetryConfig
	now      func() time.Time
}

// TranscriptionDeps are the optional collaborators of TranscriptionService
type TranscriptionDeps struct {
	Capper  *ratelimit.DailyCapTracker
	Events  EventStore
	Cache   *storage.CacheService
	Metrics *observe.Metrics
	Retry   *retry.RetryConfig
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(progress ProgressStore, credits CreditStore, rules credit.Rules, deps TranscriptionDeps) *TranscriptionService {
	retryCfg := deps.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultRetryConfig()
		retryCfg.ShouldRetry = retryableLedgerError
	}
	return &TranscriptionService{
		progress: progress,
		credits:  credits,
		capper:   deps.Capper,
		events:   deps.Events,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		rules:    rules,
		retry:    retryCfg,
		now:      time.Now,
	}
}

// retryableLedgerError never retries a cap rejection or bad input
func retryableLedgerError(err error) bool {
	catErr := apperrors.Categorize(err)
	switch catErr.Code {
	case apperrors.CodeDailyLimitReached, apperrors.CodeInvalidParameter:
		return false
	}
	return true
}

// RecordTranscription persists one verse completion and returns the new
// daily total. Ledger failures are returned as PERSISTENCE_FAILURE; an
// award the cap cannot hold is returned as DAILY_LIMIT_REACHED.
func (s *TranscriptionService) RecordTranscription(ctx context.Context, userID string, rec types.TranscriptionRecord) (*types.RecordResult, error) {
	if err := rec.Validate(); err != nil {
		return nil, apperrors.NewInvalidParameterError("transcription", err.Error())
	}
	if rec.CreditsAwarded != 0 && rec.CreditsAwarded != s.rules.PerVerse {
		return nil, apperrors.NewInvalidParameterError("creditsAwarded", "must be 0 or the per-verse award")
	}

	logger := logging.FromContext(ctx).WithUser(userID).WithFields(map[string]interface{}{
		"mode":  rec.Mode,
		"verse": rec.Key().String(),
		"date":  rec.LocalDate,
	})

	capped := rec.Mode.Capped() && rec.CreditsAwarded > 0
	reserved := false
	if capped && s.capper != nil {
		res, err := s.reserve(ctx, userID, rec)
		switch {
		case err != nil:
			// The ledger upsert still enforces the cap
			logger.WithError(err).Warn("daily cap counter unavailable")
		case !res.Allowed:
			s.metrics.RecordDailyLimitReached(ctx)
			return nil, apperrors.NewDailyLimitError(rec.LocalDate, res.Total, res.Limit)
		default:
			reserved = true
		}
	}

	limit := 0
	if capped {
		limit = s.rules.DailyLimit
	}

	var result *types.RecordResult
	err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		var recErr error
		result, recErr = s.progress.RecordTranscription(ctx, userID, rec, limit)
		return recErr
	})
	if err != nil {
		if reserved {
			if relErr := s.capper.Release(ctx, userID, rec.LocalDate, rec.CreditsAwarded); relErr != nil {
				logger.WithError(relErr).Warn("failed to release daily cap reservation")
			}
		}
		if catErr := apperrors.Categorize(err); catErr.Code == apperrors.CodeDailyLimitReached {
			s.metrics.RecordDailyLimitReached(ctx)
			return nil, catErr
		}
		s.metrics.RecordPersistenceFailure(ctx, "record_transcription")
		logger.WithError(err).Error("failed to record transcription")
		return nil, apperrors.NewPersistenceError("transcription", err)
	}

	s.afterRecord(ctx, logger, userID, rec, result)
	return result, nil
}

// reserve seeds the Redis counter from the ledger on first use of the day
func (s *TranscriptionService) reserve(ctx context.Context, userID string, rec types.TranscriptionRecord) (ratelimit.Reservation, error) {
	seed := 0
	if _, ok, err := s.capper.Current(ctx, userID, rec.LocalDate); err != nil {
		return ratelimit.Reservation{}, err
	} else if !ok {
		row, err := s.credits.GetDaily(ctx, userID, rec.LocalDate)
		if err != nil {
			return ratelimit.Reservation{}, err
		}
		seed = row.Earned
	}
	return s.capper.Reserve(ctx, userID, rec.LocalDate, rec.CreditsAwarded, seed)
}

func (s *TranscriptionService) afterRecord(ctx context.Context, logger *logging.Logger, userID string, rec types.TranscriptionRecord, result *types.RecordResult) {
	if s.capper != nil && result != nil {
		if err := s.capper.Reconcile(ctx, userID, rec.LocalDate, result.NewDailyEarnedTotal); err != nil {
			logger.WithError(err).Warn("failed to reconcile daily cap counter")
		}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUserProgress(ctx, userID, rec.LocalDate); err != nil {
			logger.WithError(err).Warn("failed to invalidate progress cache")
		}
	}

	if s.events != nil {
		evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
		defer cancel()
		if err := s.events.Insert(evCtx, models.NewTranscriptionEvent(userID, rec, s.now())); err != nil {
			logger.WithError(err).Warn("failed to log transcription event")
		}
	}

	s.metrics.RecordVerseCompleted(ctx, rec.Mode, rec.CreditsAwarded)
	logger.WithField("dailyTotal", result.NewDailyEarnedTotal).Debug("transcription recorded")
}
