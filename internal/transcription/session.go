package transcription

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/types"
)

// State is the advancement state of a session
type State string

const (
	StateIdle         State = "idle"     // Waiting for input on the current verse
	StateMatching     State = "matching" // Input present but not yet an exact match
	StateCorrect      State = "correct"  // Exact match, ready to advance
	StateAdvancing    State = "advancing"
	StateComplete     State = "complete"
	StateLimitReached State = "limit_reached"
)

// Terminal reports whether the session accepts no further input
func (s State) Terminal() bool {
	return s == StateComplete || s == StateLimitReached
}

// Recorder persists a verse completion and returns the new daily total
type Recorder interface {
	RecordTranscription(ctx context.Context, userID string, rec types.TranscriptionRecord) (*types.RecordResult, error)
}

// EndReason tells the completion callback why the session ended
type EndReason string

const (
	EndComplete     EndReason = "complete"
	EndLimitReached EndReason = "limit_reached"
)

// Summary is passed to the completion callback
type Summary struct {
	SessionID     string    `json:"sessionId"`
	Reason        EndReason `json:"reason"`
	SessionEarned int       `json:"sessionEarned"`
	VersesDone    int       `json:"versesDone"`
}

// Options configures a new session
type Options struct {
	ID          string
	UserID      string
	Mode        types.Mode
	Verses      []types.Verse
	StartIndex  int
	TodayEarned int // Ledger total for the local date at session start
	Rules       credit.Rules
	Delay       time.Duration // Display pause before moving on; <= 0 advances synchronously
	Location    *time.Location
	Recorder    Recorder
	OnComplete  func(Summary)
	Now         func() time.Time
}

// Snapshot is the read model exposed to the presentation layer
type Snapshot struct {
	ID                   string           `json:"id"`
	Mode                 types.Mode       `json:"mode"`
	State                State            `json:"state"`
	CurrentVerse         *types.Verse     `json:"currentVerse,omitempty"`
	Index                int              `json:"index"`
	Total                int              `json:"total"`
	Input                string           `json:"input"`
	MatchState           types.MatchState `json:"matchState"`
	Highlight            []Segment        `json:"highlight,omitempty"`
	SessionCreditsEarned int              `json:"sessionCreditsEarned"`
	TodayEarned          int              `json:"todayEarned"`
	IsAtDailyLimit       bool             `json:"isAtDailyLimit"`
	IsComplete           bool             `json:"isComplete"`
	Notice               string           `json:"notice,omitempty"`
}

type finishKind int

const (
	finishNext finishKind = iota
	finishComplete
	finishLimit
)

// Session drives one pass over a verse sequence. All methods are safe for
// concurrent use; the recorder is always called without the lock held.
type Session struct {
	id       string
	userID   string
	mode     types.Mode
	verses   []types.Verse
	rules    credit.Rules
	delay    time.Duration
	loc      *time.Location
	recorder Recorder
	onDone   func(Summary)
	now      func() time.Time
	logger   *logging.Logger

	mu            sync.Mutex
	state         State
	index         int
	input         string
	match         types.MatchState
	day           string
	todayEarned   int // ledger total for day as last observed
	dayEarned     int // awarded this session on day, not yet reflected in todayEarned
	sessionEarned int
	versesDone    int
	atLimit       bool
	notice        string
	gen           uint64
	timer         *time.Timer
	pendingCb     func()
	closed        bool
	lastActive    time.Time
}

// NewSession creates a session positioned at opts.StartIndex. A start index
// at or past the end yields an already complete session, and OnComplete runs
// before NewSession returns.
func NewSession(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	rules := opts.Rules
	if rules.PerVerse == 0 {
		rules = credit.DefaultRules()
	}

	s := &Session{
		id:          opts.ID,
		userID:      opts.UserID,
		mode:        opts.Mode,
		verses:      opts.Verses,
		rules:       rules,
		delay:       opts.Delay,
		loc:         loc,
		recorder:    opts.Recorder,
		onDone:      opts.OnComplete,
		now:         now,
		logger:      logging.WithUser(opts.UserID).WithSession(opts.ID),
		state:       StateIdle,
		index:       opts.StartIndex,
		match:       types.MatchPending,
		todayEarned: opts.TodayEarned,
		lastActive:  now(),
	}
	s.day = types.LocalDate(s.lastActive, loc)

	if s.index < 0 {
		s.index = 0
	}
	if s.index >= len(s.verses) {
		s.state = StateComplete
	}
	if s.mode.Capped() && s.rules.AtLimit(s.todayEarned) && !s.state.Terminal() {
		s.state = StateLimitReached
		s.atLimit = true
	}

	// A session that starts terminal still reports its (empty) summary
	var cb func()
	switch s.state {
	case StateComplete:
		cb = s.doneCallback(EndComplete)
	case StateLimitReached:
		cb = s.doneCallback(EndLimitReached)
	}
	if cb != nil {
		cb()
	}
	return s
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// UserID returns the owning user
func (s *Session) UserID() string { return s.userID }

// LastActive returns when the session last received a call
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot returns the current read model
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:                   s.id,
		Mode:                 s.mode,
		State:                s.state,
		Index:                s.index,
		Total:                len(s.verses),
		Input:                s.input,
		MatchState:           s.match,
		SessionCreditsEarned: s.sessionEarned,
		TodayEarned:          s.todayEarned + s.dayEarned,
		IsAtDailyLimit:       s.atLimit,
		IsComplete:           s.state == StateComplete,
		Notice:               s.notice,
	}
	if s.index < len(s.verses) {
		v := s.verses[s.index]
		snap.CurrentVerse = &v
		snap.Highlight = Highlight(s.input, v.Text)
	}
	return snap
}

// SubmitInput evaluates the typed text against the current verse. Input is
// ignored while advancing and once the session has ended.
func (s *Session) SubmitInput(text string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.now()
	if s.closed || s.state == StateAdvancing || s.state.Terminal() || s.index >= len(s.verses) {
		return s.snapshotLocked()
	}

	s.input = text
	s.match = Match(text, s.verses[s.index].Text)
	switch {
	case s.match == types.MatchExact:
		s.state = StateCorrect
	case text == "":
		s.state = StateIdle
	default:
		s.state = StateMatching
	}
	return s.snapshotLocked()
}

// Advance awards the matched verse and schedules the move to the next one.
// Outside StateCorrect it is a no-op. A persistence failure leaves the
// session on the same verse in StateCorrect so the caller can retry; the
// returned error is then a non-fatal PERSISTENCE_FAILURE.
func (s *Session) Advance(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.lastActive = s.now()
	if s.closed || s.state != StateCorrect {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}

	s.state = StateAdvancing
	s.notice = ""
	s.rollDayLocked()

	verse := s.verses[s.index]
	day := s.day
	limitAfter := false
	if s.mode.Capped() {
		decision := s.rules.Decide(s.todayEarned, s.dayEarned)
		if !decision.Award {
			s.atLimit = true
			s.scheduleLocked(finishLimit)
			snap := s.snapshotLocked()
			s.unlock()
			s.logger.WithField("projected", decision.Projected).Info("Daily limit reached, verse not awarded")
			return snap, nil
		}
		limitAfter = decision.LimitReached
	}
	credits := s.rules.PerVerse
	s.mu.Unlock()

	rec := types.TranscriptionRecord{
		Mode:           s.mode,
		Book:           verse.Book,
		Chapter:        verse.Chapter,
		Verse:          verse.Number,
		CreditsAwarded: credits,
		LocalDate:      day,
	}
	result, err := s.record(ctx, rec)

	s.mu.Lock()
	snap, err := s.applyResultLocked(verse, day, credits, limitAfter, result, err)
	s.unlock()
	return snap, err
}

func (s *Session) applyResultLocked(verse types.Verse, day string, credits int, limitAfter bool,
	result *types.RecordResult, err error) (Snapshot, error) {
	if s.closed {
		return s.snapshotLocked(), nil
	}

	if err != nil {
		if catErr := apperrors.Categorize(err); catErr.Code == apperrors.CodeDailyLimitReached {
			// Another session filled the cap first
			s.atLimit = true
			s.scheduleLocked(finishLimit)
			return s.snapshotLocked(), nil
		}

		s.state = StateCorrect
		s.notice = "progress could not be saved, try again"
		s.logger.WithError(err).WithField("verse", verse.Reference()).Warn("Failed to record transcription")
		if !apperrors.IsPersistenceFailure(err) {
			err = apperrors.NewPersistenceError("transcription", err)
		}
		return s.snapshotLocked(), err
	}

	s.sessionEarned += credits
	s.versesDone++
	if result != nil && result.NewDailyEarnedTotal > 0 && day == s.day {
		s.todayEarned = result.NewDailyEarnedTotal
		s.dayEarned = 0
	} else if day == s.day {
		s.dayEarned += credits
	}

	switch {
	case limitAfter:
		s.atLimit = true
		s.scheduleLocked(finishLimit)
	case s.index == len(s.verses)-1:
		s.scheduleLocked(finishComplete)
	default:
		s.scheduleLocked(finishNext)
	}
	return s.snapshotLocked(), nil
}

// unlock releases the lock and then runs a completion callback queued while
// it was held.
func (s *Session) unlock() {
	cb := s.pendingCb
	s.pendingCb = nil
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (s *Session) record(ctx context.Context, rec types.TranscriptionRecord) (*types.RecordResult, error) {
	if s.recorder == nil {
		return nil, errors.New("no recorder configured")
	}
	return s.recorder.RecordTranscription(ctx, s.userID, rec)
}

// rollDayLocked resets the daily counters when the local date has changed
func (s *Session) rollDayLocked() {
	today := types.LocalDate(s.now(), s.loc)
	if today == s.day {
		return
	}
	s.day = today
	s.todayEarned = 0
	s.dayEarned = 0
}

// scheduleLocked arms the delayed transition. Any earlier pending transition
// is superseded by bumping the generation.
func (s *Session) scheduleLocked(kind finishKind) {
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if s.delay <= 0 {
		s.pendingCb = s.finishLocked(kind)
		return
	}

	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.closed || s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.pendingCb = s.finishLocked(kind)
		s.unlock()
	})
}

// finishLocked applies a delayed transition and returns the completion
// callback to invoke, if any.
func (s *Session) finishLocked(kind finishKind) func() {
	s.input = ""
	s.match = types.MatchPending

	switch kind {
	case finishNext:
		s.index++
		s.state = StateIdle
		return nil
	case finishComplete:
		s.state = StateComplete
	case finishLimit:
		s.state = StateLimitReached
	}

	if kind == finishLimit {
		return s.doneCallback(EndLimitReached)
	}
	return s.doneCallback(EndComplete)
}

func (s *Session) doneCallback(reason EndReason) func() {
	if s.onDone == nil {
		return nil
	}
	summary := Summary{
		SessionID:     s.id,
		Reason:        reason,
		SessionEarned: s.sessionEarned,
		VersesDone:    s.versesDone,
	}
	onDone := s.onDone
	return func() { onDone(summary) }
}

// Close cancels any pending transition. Late recorder results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
