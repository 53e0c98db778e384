package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/ratelimit"
	"github.com/verse-scribe/internal/retry"
	"github.com/verse-scribe/internal/storage"
	"github.com/verse-scribe/internal/types"
)

var errStoreDown = errors.New("connection refused")

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func newTestCache(t *testing.T, client *redis.Client) *storage.CacheService {
	return storage.NewCacheService(storage.NewRedisCacheFromClient(client), 30*time.Second, 24*time.Hour)
}

func newTestCapper(t *testing.T, client *redis.Client) *ratelimit.DailyCapTracker {
	t.Helper()
	capper, err := ratelimit.NewDailyCapTracker(&ratelimit.DailyCapConfig{Redis: client, Limit: credit.DailyLimit})
	require.NoError(t, err)
	return capper
}

// fastRetry keeps ledger retries out of test wall time
func fastRetry() *retry.RetryConfig {
	return &retry.RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
		ShouldRetry:  retryableLedgerError,
	}
}

// ledger is an in-memory credit and progress ledger with the same cap
// semantics as the Postgres upsert
type ledger struct {
	mu        sync.Mutex
	daily     map[string]int // user|date -> earned
	spent     map[string]int
	completed map[string]types.CompletedSet
	pointers  map[string]map[string]*models.ProgressPointer
	failNext  int
	readErr   error
	calls     int
}

func newLedger() *ledger {
	return &ledger{
		daily:     make(map[string]int),
		spent:     make(map[string]int),
		completed: make(map[string]types.CompletedSet),
		pointers:  make(map[string]map[string]*models.ProgressPointer),
	}
}

func (l *ledger) RecordTranscription(ctx context.Context, userID string, rec types.TranscriptionRecord, dailyLimit int) (*types.RecordResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failNext > 0 {
		l.failNext--
		return nil, errStoreDown
	}

	key := userID + "|" + rec.LocalDate
	total := l.daily[key] + rec.CreditsAwarded
	if dailyLimit > 0 && total > dailyLimit {
		return nil, apperrors.NewDailyLimitError(rec.LocalDate, l.daily[key], dailyLimit)
	}
	l.daily[key] = total

	if l.completed[userID] == nil {
		l.completed[userID] = types.NewCompletedSet()
	}
	l.completed[userID].Add(rec.Key())
	if l.pointers[userID] == nil {
		l.pointers[userID] = make(map[string]*models.ProgressPointer)
	}
	if prev := l.pointers[userID][rec.Book]; prev == nil || prev.Mode == types.ModeCasual || rec.Mode == types.ModeSequential {
		l.pointers[userID][rec.Book] = &models.ProgressPointer{
			UserID: userID, Book: rec.Book, Chapter: rec.Chapter, Verse: rec.Verse, Mode: rec.Mode, UpdatedAt: time.Now(),
		}
	}
	return &types.RecordResult{NewDailyEarnedTotal: total}, nil
}

func (l *ledger) GetCompletedKeys(ctx context.Context, userID string) (types.CompletedSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := types.NewCompletedSet()
	for k := range l.completed[userID] {
		out.Add(k)
	}
	return out, nil
}

func (l *ledger) GetPointers(ctx context.Context, userID string) ([]*models.ProgressPointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	var out []*models.ProgressPointer
	for _, p := range l.pointers[userID] {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (l *ledger) GetDaily(ctx context.Context, userID, date string) (credit.DailyRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return credit.DailyRow{}, l.readErr
	}
	key := userID + "|" + date
	return credit.DailyRow{Date: date, Earned: l.daily[key], Spent: l.spent[key]}, nil
}

func (l *ledger) GetMonth(ctx context.Context, userID, yearMonth string) ([]credit.DailyRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	var rows []credit.DailyRow
	prefix := userID + "|" + yearMonth + "-"
	for key, earned := range l.daily {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			rows = append(rows, credit.DailyRow{Date: key[len(userID)+1:], Earned: earned})
		}
	}
	return rows, nil
}

func (l *ledger) setEarned(userID, date string, earned int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.daily[userID+"|"+date] = earned
}

func (l *ledger) earned(userID, date string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.daily[userID+"|"+date]
}

func (l *ledger) complete(userID string, keys ...types.VerseKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.completed[userID] == nil {
		l.completed[userID] = types.NewCompletedSet()
	}
	for _, k := range keys {
		l.completed[userID].Add(k)
	}
}

// fakeVerses serves generated chapter texts
type fakeVerses struct {
	mu       sync.Mutex
	chapters map[string][]types.Verse
	err      error
	searched string
}

func newFakeVerses() *fakeVerses {
	return &fakeVerses{chapters: make(map[string][]types.Verse)}
}

func (f *fakeVerses) addChapter(book string, chapter, count int) []types.Verse {
	verses := make([]types.Verse, count)
	for i := range verses {
		verses[i] = types.Verse{Book: book, Chapter: chapter, Number: i + 1, Text: fmt.Sprintf("%s %d:%d text", book, chapter, i+1)}
	}
	f.mu.Lock()
	f.chapters[fmt.Sprintf("%s|%d", book, chapter)] = verses
	f.mu.Unlock()
	return verses
}

func (f *fakeVerses) GetChapter(ctx context.Context, translation string, book bible.Book, chapter int) ([]types.Verse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, apperrors.NewVerseSourceUnavailableError(book.ID, chapter, f.err)
	}
	verses, ok := f.chapters[fmt.Sprintf("%s|%d", book.ID, chapter)]
	if !ok {
		return nil, apperrors.NewVerseSourceUnavailableError(book.ID, chapter, nil)
	}
	return verses, nil
}

func (f *fakeVerses) GetVerses(ctx context.Context, translation string, keys []types.VerseKey) ([]types.Verse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Verse
	for _, k := range keys {
		for _, v := range f.chapters[fmt.Sprintf("%s|%d", k.Book, k.Chapter)] {
			if v.Number == k.Verse {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (f *fakeVerses) Search(ctx context.Context, translation, query string, limit int) ([]types.Verse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = query
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Verse
	for _, verses := range f.chapters {
		for _, v := range verses {
			if len(out) < limit && v.Text == query {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

// fakeEvents records inserted activity events
type fakeEvents struct {
	mu     sync.Mutex
	events []*models.TranscriptionEvent
	err    error
}

func (f *fakeEvents) Insert(ctx context.Context, events ...*models.TranscriptionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEvents) Recent(ctx context.Context, userID string, limit int) ([]*models.TranscriptionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TranscriptionEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].UserID == userID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeProfiles is an in-memory profile store keyed by auth subject
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile // by profile id
	ensures  int
	err      error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*models.Profile)}
}

func (f *fakeProfiles) EnsureProfile(ctx context.Context, id models.ProfileIdentity) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.profiles {
		if p.AuthUserID == id.AuthUserID {
			return p, nil
		}
	}
	p := &models.Profile{ID: fmt.Sprintf("user-%d", len(f.profiles)+1), AuthUserID: id.AuthUserID, Email: id.Email, Name: id.Name}
	f.profiles[p.ID] = p
	return p, nil
}

func (f *fakeProfiles) GetSummary(ctx context.Context, userID string) (*models.ProfileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperrors.NewProfileNotFoundError(userID)
	}
	return &models.ProfileSummary{UserID: p.ID, DisplayName: p.DisplayName(), Email: p.Email, Church: p.ChurchName}, nil
}

func (f *fakeProfiles) Update(ctx context.Context, userID string, upd models.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return apperrors.NewProfileNotFoundError(userID)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.ChurchName != nil {
		if *upd.ChurchName == "" {
			p.ChurchName = nil
		} else {
			church := *upd.ChurchName
			p.ChurchName = &church
		}
	}
	return nil
}
