// Package credit holds the pure credit rules: the daily-cap award decision
// and the monthly calendar aggregation.
package credit

import (
	"fmt"
	"math"
	"time"

	"github.com/verse-scribe/internal/types"
)

// Default award rules
const (
	PerVerse   = 10
	DailyLimit = 300
)

// Rules parameterizes the award decision
type Rules struct {
	PerVerse   int
	DailyLimit int
}

// DefaultRules returns 10 credits per verse with a 300 credit daily limit
func DefaultRules() Rules {
	return Rules{PerVerse: PerVerse, DailyLimit: DailyLimit}
}

// Decision is the outcome of a capped award check
type Decision struct {
	Award        bool // Issue the per-verse increment
	LimitReached bool // The session is terminal for the rest of the day
	Projected    int  // Daily total if the award were issued
}

// Decide applies the daily cap to one verse completion. todayEarned is what
// the ledger already holds for the local date and sessionEarned is what this
// session awarded that the ledger reading does not yet include.
//
// A completion that lands exactly on the limit is still awarded and ends the
// day. One that would overshoot it is not awarded.
func (r Rules) Decide(todayEarned, sessionEarned int) Decision {
	projected := todayEarned + sessionEarned + r.PerVerse
	switch {
	case projected > r.DailyLimit:
		return Decision{Award: false, LimitReached: true, Projected: projected}
	case projected == r.DailyLimit:
		return Decision{Award: true, LimitReached: true, Projected: projected}
	default:
		return Decision{Award: true, Projected: projected}
	}
}

// AtLimit reports whether no further capped award can be issued today
func (r Rules) AtLimit(earned int) bool {
	return earned+r.PerVerse > r.DailyLimit
}

// Remaining returns the verses still awardable today under the cap
func (r Rules) Remaining(earned int) int {
	left := (r.DailyLimit - earned) / r.PerVerse
	if left < 0 {
		return 0
	}
	return left
}

// Percentage returns round(earned / limit * 100). It is not clamped; use
// RingStatus for display.
func (r Rules) Percentage(earned int) int {
	if r.DailyLimit <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(r.DailyLimit) * 100))
}

// Ring is the calendar ring indicator for one day
type Ring string

const (
	RingNone       Ring = "none"
	RingInProgress Ring = "in-progress"
	RingCompleted  Ring = "completed"
)

// RingStatus maps a percentage to its ring, clamped to 0..100
func RingStatus(percentage int) (Ring, int) {
	switch {
	case percentage <= 0:
		return RingNone, 0
	case percentage >= 100:
		return RingCompleted, 100
	default:
		return RingInProgress, percentage
	}
}

// DailyRow is one ledger row for a user and local date
type DailyRow struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Earned int    `json:"earned"`
	Spent  int    `json:"spent"`
}

// DayProgress is one calendar cell
type DayProgress struct {
	Earned     int  `json:"earned"`
	Percentage int  `json:"percentage"`
	Ring       Ring `json:"ring"`
}

// MonthRange returns the half-open interval [first day, first day of next
// month) for a "YYYY-MM" string.
func MonthRange(yearMonth string) (start, end string, err error) {
	first, err := time.Parse(types.MonthLayout, yearMonth)
	if err != nil {
		return "", "", fmt.Errorf("invalid month %q (expected YYYY-MM)", yearMonth)
	}
	return first.Format(types.DateLayout), first.AddDate(0, 1, 0).Format(types.DateLayout), nil
}

// BuildEarnedByDate turns month rows into a dense date -> earned map.
// Days without a row are absent and read as zero. Duplicate dates are summed.
func BuildEarnedByDate(rows []DailyRow) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Date] += row.Earned
	}
	return out
}

// BuildCalendar decorates the earned map with percentages and rings
func (r Rules) BuildCalendar(rows []DailyRow) map[string]DayProgress {
	earned := BuildEarnedByDate(rows)
	out := make(map[string]DayProgress, len(earned))
	for date, amount := range earned {
		ring, pct := RingStatus(r.Percentage(amount))
		out[date] = DayProgress{Earned: amount, Percentage: pct, Ring: ring}
	}
	return out
}

// CurrentMonth returns the "YYYY-MM" containing date
func CurrentMonth(date string) string {
	if len(date) < len(types.MonthLayout) {
		return date
	}
	return date[:len(types.MonthLayout)]
}
