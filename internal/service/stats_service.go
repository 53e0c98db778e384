package service

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/storage"
	"github.com/verse-scribe/internal/types"
)

// Activity limits
const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 200
)

// StatsService serves the read side of the credit and progress ledgers
type StatsService struct {
	credits  CreditStore
	progress ProgressStore
	events   EventStore
	cache    *storage.CacheService
	rules    credit.Rules
}

// NewStatsService creates a new stats service. events and cache may be nil.
func NewStatsService(credits CreditStore, progress ProgressStore, events EventStore, cache *storage.CacheService, rules credit.Rules) *StatsService {
	return &StatsService{credits: credits, progress: progress, events: events, cache: cache, rules: rules}
}

// DailyStats is the credit state of one local date
type DailyStats struct {
	Date       string      `json:"date"`
	Earned     int         `json:"earned"`
	Spent      int         `json:"spent"`
	Limit      int         `json:"limit"`
	Remaining  int         `json:"remainingVerses"`
	Percentage int         `json:"percentage"`
	Ring       credit.Ring `json:"ring"`
	IsAtLimit  bool        `json:"isAtDailyLimit"`
}

// MonthStats is the calendar of one month
type MonthStats struct {
	Month       string                        `json:"month"`
	Days        map[string]credit.DayProgress `json:"days"`
	TotalEarned int                           `json:"totalEarned"`
	ActiveDays  int                           `json:"activeDays"`
}

// Dashboard combines everything the home screen shows
type Dashboard struct {
	Today          *DailyStats               `json:"today"`
	Month          *MonthStats               `json:"month"`
	CompletedCount int                       `json:"completedVerses"`
	Progress       []*models.ProgressPointer `json:"progress"`
}

// Daily returns the credit state of date for userID
func (s *StatsService) Daily(ctx context.Context, userID, date string) (*DailyStats, error) {
	if err := types.ValidateDate(date); err != nil {
		return nil, apperrors.NewInvalidParameterError("date", err.Error())
	}

	var key string
	if s.cache != nil {
		key = s.cache.DailyKey(userID, date)
		var cached DailyStats
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	row, err := s.credits.GetDaily(ctx, userID, date)
	if err != nil {
		return nil, dbError("get daily credits", err)
	}

	ring, pct := credit.RingStatus(s.rules.Percentage(row.Earned))
	stats := &DailyStats{
		Date:       date,
		Earned:     row.Earned,
		Spent:      row.Spent,
		Limit:      s.rules.DailyLimit,
		Remaining:  s.rules.Remaining(row.Earned),
		Percentage: pct,
		Ring:       ring,
		IsAtLimit:  s.rules.AtLimit(row.Earned),
	}
	s.store(ctx, key, stats)
	return stats, nil
}

// Month returns the calendar for a "YYYY-MM" month
func (s *StatsService) Month(ctx context.Context, userID, yearMonth string) (*MonthStats, error) {
	if _, _, err := credit.MonthRange(yearMonth); err != nil {
		return nil, apperrors.NewInvalidParameterError("month", err.Error())
	}

	var key string
	if s.cache != nil {
		key = s.cache.MonthKey(userID, yearMonth)
		var cached MonthStats
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	rows, err := s.credits.GetMonth(ctx, userID, yearMonth)
	if err != nil {
		return nil, dbError("get monthly credits", err)
	}

	stats := &MonthStats{Month: yearMonth, Days: s.rules.BuildCalendar(rows)}
	for _, day := range stats.Days {
		stats.TotalEarned += day.Earned
		if day.Earned > 0 {
			stats.ActiveDays++
		}
	}
	s.store(ctx, key, stats)
	return stats, nil
}

// CompletedKeys returns every verse the user has transcribed at least once
func (s *StatsService) CompletedKeys(ctx context.Context, userID string) (types.CompletedSet, error) {
	var key string
	if s.cache != nil {
		key = s.cache.CompletedKey(userID)
		var cached []string
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			set := types.NewCompletedSet()
			for _, raw := range cached {
				if k, err := types.ParseVerseKey(raw); err == nil {
					set.Add(k)
				}
			}
			return set, nil
		}
	}

	set, err := s.progress.GetCompletedKeys(ctx, userID)
	if err != nil {
		return nil, dbError("get completed verses", err)
	}

	if key != "" {
		raw := make([]string, 0, len(set))
		for k := range set {
			raw = append(raw, k.String())
		}
		sort.Strings(raw)
		s.store(ctx, key, raw)
	}
	return set, nil
}

// Pointers returns the resumption pointer of every started book
func (s *StatsService) Pointers(ctx context.Context, userID string) ([]*models.ProgressPointer, error) {
	pointers, err := s.progress.GetPointers(ctx, userID)
	if err != nil {
		return nil, dbError("get progress", err)
	}
	return pointers, nil
}

// Dashboard loads today, the current month and overall progress concurrently
func (s *StatsService) Dashboard(ctx context.Context, userID, date string) (*Dashboard, error) {
	if err := types.ValidateDate(date); err != nil {
		return nil, apperrors.NewInvalidParameterError("date", err.Error())
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		today, err := s.Daily(gctx, userID, date)
		d.Today = today
		return err
	})
	g.Go(func() error {
		month, err := s.Month(gctx, userID, credit.CurrentMonth(date))
		d.Month = month
		return err
	})
	g.Go(func() error {
		set, err := s.CompletedKeys(gctx, userID)
		d.CompletedCount = len(set)
		return err
	})
	g.Go(func() error {
		pointers, err := s.Pointers(gctx, userID)
		d.Progress = pointers
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Recent returns the newest transcription events. Without an activity log
// it returns an empty list.
func (s *StatsService) Recent(ctx context.Context, userID string, limit int) ([]*models.TranscriptionEvent, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	limit = min(limit, MaxActivityLimit)
	if s.events == nil {
		return []*models.TranscriptionEvent{}, nil
	}

	events, err := s.events.Recent(ctx, userID, limit)
	if err != nil {
		return nil, dbError("get recent activity", err)
	}
	return events, nil
}

func (s *StatsService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("stats cache write failed")
	}
}
