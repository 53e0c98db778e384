// Package types provides common type definitions for the verse transcription system.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode represents the transcription mode a verse was completed in
type Mode string

const (
	// ModeCasual represents curated topic sequences (no daily cap, no resumption)
	ModeCasual Mode = "casual"
	// ModeSequential represents canonical book order (daily cap, resumable)
	ModeSequential Mode = "sequential"
)

// ParseMode parses a mode string. The legacy client names "easy" and
// "expert" are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "casual", "easy", "topic":
		return ModeCasual, nil
	case "sequential", "expert":
		return ModeSequential, nil
	default:
		return "", fmt.Errorf("invalid mode: %q (must be 'casual' or 'sequential')", s)
	}
}

// Capped reports whether awards in this mode count against the daily limit
func (m Mode) Capped() bool {
	return m == ModeSequential
}

// MatchState is the result of comparing typed input against a target verse
type MatchState string

const (
	// MatchPending means the trimmed input is a strict prefix of the target
	MatchPending MatchState = "pending"
	// MatchExact means the trimmed input equals the target
	MatchExact MatchState = "match"
	// MatchMismatch means the trimmed input diverges from the target
	MatchMismatch MatchState = "mismatch"
)

// Testament groups books of the canon
type Testament string

const (
	TestamentOld Testament = "old"
	TestamentNew Testament = "new"
)

// Verse is a single verse of a sequence
type Verse struct {
	Book    string `json:"book"` // Book slug (e.g., "genesis")
	Chapter int    `json:"chapter"`
	Number  int    `json:"verse"`
	Text    string `json:"text"`
}

// Key returns the completed-verse key for this verse
func (v Verse) Key() VerseKey {
	return VerseKey{Book: v.Book, Chapter: v.Chapter, Verse: v.Number}
}

// Reference returns a human readable reference such as "genesis 1:3"
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Number)
}

// VerseKey identifies one verse a user may have transcribed
type VerseKey struct {
	Book    string
	Chapter int
	Verse   int
}

// KeySeparator joins the parts of a serialized VerseKey
const KeySeparator = "|"

// String serializes the key as "book|chapter|verse"
func (k VerseKey) String() string {
	return k.Book + KeySeparator + strconv.Itoa(k.Chapter) + KeySeparator + strconv.Itoa(k.Verse)
}

// ParseVerseKey parses a serialized "book|chapter|verse" key
func ParseVerseKey(s string) (VerseKey, error) {
	parts := strings.Split(s, KeySeparator)
	if len(parts) != 3 || parts[0] == "" {
		return VerseKey{}, fmt.Errorf("invalid verse key: %q", s)
	}
	chapter, err := strconv.Atoi(parts[1])
	if err != nil || chapter <= 0 {
		return VerseKey{}, fmt.Errorf("invalid chapter in verse key: %q", s)
	}
	verse, err := strconv.Atoi(parts[2])
	if err != nil || verse <= 0 {
		return VerseKey{}, fmt.Errorf("invalid verse in verse key: %q", s)
	}
	return VerseKey{Book: parts[0], Chapter: chapter, Verse: verse}, nil
}

// CompletedSet is a membership set of completed verse keys
type CompletedSet map[VerseKey]struct{}

// NewCompletedSet builds a set from keys
func NewCompletedSet(keys ...VerseKey) CompletedSet {
	set := make(CompletedSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether the key is in the set
func (s CompletedSet) Has(k VerseKey) bool {
	_, ok := s[k]
	return ok
}

// Add inserts a key
func (s CompletedSet) Add(k VerseKey) {
	s[k] = struct{}{}
}

// Strings returns the serialized keys as a JSON-friendly map
func (s CompletedSet) Strings() map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k.String()] = true
	}
	return out
}

// TranscriptionRecord is one successful verse completion to persist
type TranscriptionRecord struct {
	Mode           Mode   `json:"mode"`
	Book           string `json:"book"`
	Chapter        int    `json:"chapter"`
	Verse          int    `json:"verseNumber"`
	CreditsAwarded int    `json:"creditsAwarded"`
	LocalDate      string `json:"localDate"` // YYYY-MM-DD in the user's timezone
}

// Key returns the completed-verse key of the record
func (r TranscriptionRecord) Key() VerseKey {
	return VerseKey{Book: r.Book, Chapter: r.Chapter, Verse: r.Verse}
}

// Validate rejects records that cannot be written to the ledgers
func (r TranscriptionRecord) Validate() error {
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if r.Book == "" {
		return fmt.Errorf("book is required")
	}
	if r.Chapter <= 0 || r.Verse <= 0 {
		return fmt.Errorf("chapter and verse must be positive")
	}
	if r.CreditsAwarded < 0 {
		return fmt.Errorf("credits awarded cannot be negative")
	}
	return ValidateDate(r.LocalDate)
}

// RecordResult is the ledger state after a record was written
type RecordResult struct {
	NewDailyEarnedTotal int `json:"newDailyEarnedTotal"`
}

// DateLayout is the layout of a calendar date ("YYYY-MM-DD")
const DateLayout = "2006-01-02"

// MonthLayout is the layout of a calendar month ("YYYY-MM")
const MonthLayout = "2006-01"

// LocalDate returns the calendar date of t as observed in loc.
// A nil location falls back to time.Local, never UTC truncation.
func LocalDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// ValidateDate checks that s is a "YYYY-MM-DD" date
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return nil
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
