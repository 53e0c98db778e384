package credit

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// simulateDay feeds n successful matches through the cap and returns the
// credits awarded and whether the limit was reported.
func simulateDay(rules Rules, startEarned, n int) (awarded int, limitReached bool) {
	session := 0
	for i := 0; i < n && !limitReached; i++ {
		d := rules.Decide(startEarned, session)
		if d.Award {
			session += rules.PerVerse
		}
		limitReached = d.LimitReached
	}
	return session, limitReached
}

func TestDailyCapProperties(t *testing.T) {
	rules := DefaultRules()
	properties := gopter.NewProperties(nil)

	properties.Property("daily total never exceeds the limit", prop.ForAll(
		func(start, n int) bool {
			start *= rules.PerVerse
			awarded, _ := simulateDay(rules, start, n)
			return start+awarded <= rules.DailyLimit
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 100),
	))

	properties.Property("enough matches always fill the cap exactly", prop.ForAll(
		func(start int) bool {
			start *= rules.PerVerse
			awarded, reached := simulateDay(rules, start, 100)
			return reached && start+awarded == rules.DailyLimit
		},
		gen.IntRange(0, 29),
	))

	properties.Property("percentage is 100 exactly at the limit", prop.ForAll(
		func(earned int) bool {
			ring, pct := RingStatus(rules.Percentage(earned))
			if earned >= rules.DailyLimit {
				return ring == RingCompleted && pct == 100
			}
			return pct <= 100
		},
		gen.IntRange(0, 600),
	))

	properties.TestingRun(t)
}
