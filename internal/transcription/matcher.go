// Package transcription implements the typing core: matching input against
// a verse, the per-session advancement state machine and resumption.
package transcription

import (
	"strings"
	"unicode/utf8"

	"github.com/verse-scribe/internal/types"
)

// Match compares typed input with the target verse text. Only leading and
// trailing whitespace is trimmed; inner spacing and punctuation must match.
func Match(input, target string) types.MatchState {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == target:
		return types.MatchExact
	case strings.HasPrefix(target, trimmed):
		return types.MatchPending
	default:
		return types.MatchMismatch
	}
}

// SegmentStyle tells the UI how to render a highlight segment
type SegmentStyle string

const (
	StyleAffirmative SegmentStyle = "affirmative"
	StyleError       SegmentStyle = "error"
	StyleNeutral     SegmentStyle = "neutral"
)

// Segment is a run of target text with one style
type Segment struct {
	Text  string       `json:"text"`
	Style SegmentStyle `json:"style"`
}

// Highlight splits the target at the trimmed input length, counted in
// characters. The typed-over prefix is affirmative when the input is still a
// prefix of the target and error otherwise; the rest is neutral. Empty
// segments are omitted.
func Highlight(input, target string) []Segment {
	trimmed := strings.TrimSpace(input)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		return []Segment{{Text: target, Style: StyleNeutral}}
	}

	split := len(target)
	for i := range target {
		if n == 0 {
			split = i
			break
		}
		n--
	}

	style := StyleError
	if strings.HasPrefix(target, trimmed) {
		style = StyleAffirmative
	}

	segments := []Segment{{Text: target[:split], Style: style}}
	if split < len(target) {
		segments = append(segments, Segment{Text: target[split:], Style: StyleNeutral})
	}
	return segments
}
