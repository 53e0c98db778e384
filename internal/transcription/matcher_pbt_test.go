package transcription

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/verse-scribe/internal/types"
)

var sampleVerses = []string{
	"태초에 하나님이 천지를 창조하시니라",
	"하나님이 이르시되 빛이 있으라 하시니 빛이 있었고",
	"In the beginning God created the heaven and the earth.",
	"Jesus wept.",
}

// prefixOf returns the first n characters of s
func prefixOf(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func TestMatchPrefixProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every prefix is pending and only the full text matches", prop.ForAll(
		func(verseIdx, cut int) bool {
			verse := sampleVerses[verseIdx]
			n := cut % (utf8.RuneCountInString(verse) + 1)
			prefix := prefixOf(verse, n)

			state := Match(prefix, verse)
			trimmed := strings.TrimSpace(prefix)
			switch {
			case trimmed == verse:
				return state == types.MatchExact
			case strings.HasPrefix(verse, trimmed):
				return state == types.MatchPending
			default:
				return state == types.MatchMismatch
			}
		},
		gen.IntRange(0, len(sampleVerses)-1),
		gen.IntRange(0, 200),
	))

	properties.Property("a changed final character never matches", prop.ForAll(
		func(verseIdx int) bool {
			verse := sampleVerses[verseIdx]
			_, size := utf8.DecodeLastRuneInString(verse)
			altered := verse[:len(verse)-size] + "#"
			return Match(altered, verse) == types.MatchMismatch
		},
		gen.IntRange(0, len(sampleVerses)-1),
	))

	properties.Property("highlight segments reassemble the target", prop.ForAll(
		func(verseIdx, cut int) bool {
			verse := sampleVerses[verseIdx]
			input := prefixOf(verse, cut)
			var b strings.Builder
			for _, seg := range Highlight(input, verse) {
				b.WriteString(seg.Text)
			}
			return b.String() == verse
		},
		gen.IntRange(0, len(sampleVerses)-1),
		gen.IntRange(0, 80),
	))

	properties.TestingRun(t)
}
