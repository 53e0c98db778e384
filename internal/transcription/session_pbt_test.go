package transcription

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/verse-scribe/internal/types"
)

// Property: however many verses are matched in one sequential session, the
// ledger total for the day never passes 300 and the limit is reported once
// it is reached.
func TestSessionDailyCapProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sequential awards stop at the daily limit", prop.ForAll(
		func(startVerses, matches int) bool {
			start := startVerses * 10
			rec := newFakeRecorder()
			rec.totals[fixedNow.Format(types.DateLayout)] = start
			s := NewSession(Options{
				ID:          "pbt",
				UserID:      "user",
				Mode:        types.ModeSequential,
				Verses:      genesisOne(40),
				TodayEarned: start,
				Location:    time.UTC,
				Recorder:    rec,
				Now:         func() time.Time { return fixedNow },
			})
			defer s.Close()

			for i := 0; i < matches; i++ {
				snap := s.Snapshot()
				if snap.State.Terminal() || snap.CurrentVerse == nil {
					break
				}
				s.SubmitInput(snap.CurrentVerse.Text)
				if _, err := s.Advance(context.Background()); err != nil {
					return false
				}
			}

			total := rec.totals[fixedNow.Format(types.DateLayout)]
			snap := s.Snapshot()
			if total > 300 || snap.SessionCreditsEarned != total-start {
				return false
			}
			if total == 300 {
				return snap.IsAtDailyLimit
			}
			return !snap.IsAtDailyLimit
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}
