package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/catalog"
	"github.com/verse-scribe/internal/credit"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/observe"
	"github.com/verse-scribe/internal/transcription"
	"github.com/verse-scribe/internal/types"
)

// SessionConfig holds the session rules
type SessionConfig struct {
	Rules           credit.Rules
	Delay           time.Duration
	DefaultLocation *time.Location
	Translations    Translations
}

// SessionService starts and drives server-held transcription sessions
type SessionService struct {
	registry *transcription.Registry
	source   ChapterSource
	verses   VerseStore
	catalog  *catalog.Catalog
	stats    *StatsService
	recorder transcription.Recorder
	metrics  *observe.Metrics
	cfg      SessionConfig
	newID    func() string
	now      func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	registry *transcription.Registry,
	source ChapterSource,
	verses VerseStore,
	topics *catalog.Catalog,
	stats *StatsService,
	recorder transcription.Recorder,
	metrics *observe.Metrics,
	cfg SessionConfig,
) *SessionService {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.Local
	}
	if cfg.Rules.PerVerse == 0 {
		cfg.Rules = credit.DefaultRules()
	}
	return &SessionService{
		registry: registry,
		source:   source,
		verses:   verses,
		catalog:  topics,
		stats:    stats,
		recorder: recorder,
		metrics:  metrics,
		cfg:      cfg,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// StartInput selects the verse sequence of a new session
type StartInput struct {
	UserID      string         `json:"-"`
	Mode        string         `json:"mode"`
	Book        string         `json:"book,omitempty"`    // sequential; empty resumes the latest book
	Chapter     int            `json:"chapter,omitempty"` // sequential; 0 means chapter 1 or the pointer's chapter
	Topic       string         `json:"topic,omitempty"`   // casual
	Translation string         `json:"translation,omitempty"`
	Location    *time.Location `json:"-"`
}

// StartResult describes the sequence a session was started on
type StartResult struct {
	Session         transcription.Snapshot `json:"session"`
	Translation     string                 `json:"translation"`
	Book            *bible.Book            `json:"book,omitempty"`
	Chapter         int                    `json:"chapter,omitempty"`
	Topic           string                 `json:"topic,omitempty"`
	ResumeIndex     int                    `json:"resumeIndex"`
	AlreadyComplete bool                   `json:"alreadyComplete"`
}

type sequence struct {
	verses   []types.Verse
	resume   transcription.Resume
	position *bible.Position
	topic    string
}

// Start builds the verse sequence, computes the resume position and
// registers a new session
func (s *SessionService) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	mode, err := types.ParseMode(in.Mode)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("mode", err.Error())
	}
	translation, err := s.cfg.Translations.Resolve(in.Translation)
	if err != nil {
		return nil, err
	}
	loc := in.Location
	if loc == nil {
		loc = s.cfg.DefaultLocation
	}

	var seq *sequence
	if mode == types.ModeSequential {
		seq, err = s.sequentialSequence(ctx, in.UserID, translation, in.Book, in.Chapter)
	} else {
		seq, err = s.topicSequence(ctx, translation, in.Topic)
	}
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithUser(in.UserID)
	today := types.LocalDate(s.now(), loc)
	todayEarned := 0
	if daily, err := s.stats.Daily(ctx, in.UserID, today); err != nil {
		logger.WithError(err).Warn("failed to load today's credits, assuming none")
	} else {
		todayEarned = daily.Earned
	}

	id := s.newID()
	startIndex := seq.resume.Index
	if seq.resume.AlreadyComplete {
		startIndex = len(seq.verses)
	}
	sess := transcription.NewSession(transcription.Options{
		ID:          id,
		UserID:      in.UserID,
		Mode:        mode,
		Verses:      seq.verses,
		StartIndex:  startIndex,
		TodayEarned: todayEarned,
		Rules:       s.cfg.Rules,
		Delay:       s.cfg.Delay,
		Location:    loc,
		Recorder:    s.recorder,
		OnComplete: func(sum transcription.Summary) {
			logging.WithUser(in.UserID).WithSession(sum.SessionID).WithFields(map[string]interface{}{
				"reason":        sum.Reason,
				"sessionEarned": sum.SessionEarned,
				"versesDone":    sum.VersesDone,
			}).Info("Transcription session ended")
		},
	})
	s.registry.Add(sess)
	s.metrics.SessionStarted(ctx)

	logger.WithSession(id).WithFields(map[string]interface{}{
		"mode":        mode,
		"translation": translation,
		"resumeIndex": seq.resume.Index,
	}).Info("Transcription session started")

	result := &StartResult{
		Session:         sess.Snapshot(),
		Translation:     translation,
		Topic:           seq.topic,
		ResumeIndex:     seq.resume.Index,
		AlreadyComplete: seq.resume.AlreadyComplete,
	}
	if seq.position != nil {
		book := seq.position.Book
		result.Book = &book
		result.Chapter = seq.position.Chapter
	}
	return result, nil
}

func (s *SessionService) sequentialSequence(ctx context.Context, userID, translation, bookName string, chapter int) (*sequence, error) {
	logger := logging.FromContext(ctx).WithUser(userID)

	pos, err := s.startPosition(ctx, userID, bookName, chapter)
	if err != nil {
		return nil, err
	}

	completed, err := s.stats.CompletedKeys(ctx, userID)
	if err != nil {
		logger.WithError(err).Warn("failed to load completed verses, starting at the first verse")
		completed = types.NewCompletedSet()
	}

	// Walk forward past fully transcribed chapters. Only the last chapter of
	// the canon reports already complete.
	for {
		verses, err := s.source.GetChapter(ctx, translation, pos.Book, pos.Chapter)
		if err != nil {
			return nil, err
		}
		resume := transcription.ResumeIndex(verses, completed)
		if !resume.AlreadyComplete {
			return &sequence{verses: verses, resume: resume, position: &pos}, nil
		}
		next, ok := bible.NextChapter(pos.Book.ID, pos.Chapter)
		if !ok {
			return &sequence{verses: verses, resume: resume, position: &pos}, nil
		}
		pos = next
	}
}

// startPosition resolves an explicit book and chapter, or falls back to the
// most recently updated progress pointer and then to the first chapter of
// the canon
func (s *SessionService) startPosition(ctx context.Context, userID, bookName string, chapter int) (bible.Position, error) {
	if bookName != "" {
		book, ok := bible.LookupBook(bookName)
		if !ok {
			return bible.Position{}, apperrors.NewInvalidParameterError("book", "unknown book "+bookName)
		}
		if chapter == 0 {
			chapter = 1
		}
		if !book.HasChapter(chapter) {
			return bible.Position{}, apperrors.NewInvalidParameterError("chapter", "out of range for "+book.ID)
		}
		return bible.Position{Book: book, Chapter: chapter}, nil
	}

	first, _ := bible.LookupBook(bible.DefaultBook)
	start := bible.Position{Book: first, Chapter: 1}

	pointers, err := s.stats.Pointers(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).WithUser(userID).WithError(err).Warn("failed to load progress pointers")
		return start, nil
	}
	if latest := latestPointer(pointers); latest != nil {
		if book, ok := bible.LookupBook(latest.Book); ok && book.HasChapter(latest.Chapter) {
			return bible.Position{Book: book, Chapter: latest.Chapter}, nil
		}
	}
	return start, nil
}

func latestPointer(pointers []*models.ProgressPointer) *models.ProgressPointer {
	var latest *models.ProgressPointer
	for _, p := range pointers {
		if p.Mode != types.ModeSequential {
			continue
		}
		if latest == nil || p.UpdatedAt.After(latest.UpdatedAt) {
			latest = p
		}
	}
	return latest
}

func (s *SessionService) topicSequence(ctx context.Context, translation, topicID string) (*sequence, error) {
	if topicID == "" {
		return nil, apperrors.NewInvalidParameterError("topic", "required for casual mode")
	}
	topic, ok := s.catalog.Get(topicID)
	if !ok {
		return nil, apperrors.NewNotFoundError("topic", topicID)
	}

	verses := make([]types.Verse, len(topic.Verses))
	copy(verses, topic.Verses)
	if !topic.Complete() {
		if err := s.fillTexts(ctx, translation, verses); err != nil {
			return nil, err
		}
	}
	return &sequence{verses: verses, topic: topic.ID}, nil
}

// fillTexts loads the text of every verse that has none
func (s *SessionService) fillTexts(ctx context.Context, translation string, verses []types.Verse) error {
	var missing []types.VerseKey
	for _, v := range verses {
		if v.Text == "" {
			missing = append(missing, v.Key())
		}
	}

	found, err := s.verses.GetVerses(ctx, translation, missing)
	if err != nil {
		first := missing[0]
		return apperrors.NewVerseSourceUnavailableError(first.Book, first.Chapter, err)
	}
	texts := make(map[types.VerseKey]string, len(found))
	for _, v := range found {
		texts[v.Key()] = v.Text
	}

	for i := range verses {
		if verses[i].Text != "" {
			continue
		}
		text, ok := texts[verses[i].Key()]
		if !ok || text == "" {
			return apperrors.NewVerseSourceUnavailableError(verses[i].Book, verses[i].Chapter, nil)
		}
		verses[i].Text = text
	}
	return nil
}

// Get returns the current snapshot of a session owned by userID
func (s *SessionService) Get(userID, id string) (transcription.Snapshot, error) {
	sess, err := s.registry.Get(id, userID)
	if err != nil {
		return transcription.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Input evaluates typed text against the current verse
func (s *SessionService) Input(userID, id, text string) (transcription.Snapshot, error) {
	sess, err := s.registry.Get(id, userID)
	if err != nil {
		return transcription.Snapshot{}, err
	}
	return sess.SubmitInput(text), nil
}

// Advance awards the matched verse. A PERSISTENCE_FAILURE error comes with
// a usable snapshot: the session stays on the verse so it can be retried.
func (s *SessionService) Advance(ctx context.Context, userID, id string) (transcription.Snapshot, error) {
	sess, err := s.registry.Get(id, userID)
	if err != nil {
		return transcription.Snapshot{}, err
	}
	return sess.Advance(logging.WithLogger(ctx, logging.FromContext(ctx).WithSession(id)))
}

// Delete closes a session, cancelling any pending transition
func (s *SessionService) Delete(userID, id string) error {
	return s.registry.Remove(id, userID)
}
