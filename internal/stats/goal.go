package stats

import (
	"fmt"
	"time"
)

// Goal describes a linear target: TotalGoal hours spread evenly over
// PeriodDays, starting on AnchorDate.
type Goal struct {
	// AnchorDate is a calendar date; only its year, month and day are used.
	AnchorDate time.Time
	TotalGoal  float64
	PeriodDays float64
}

// DefaultGoal is 1000 hours per 365 days from 2019-12-21.
func DefaultGoal() Goal {
	return Goal{
		AnchorDate: time.Date(2019, 12, 21, 0, 0, 0, 0, time.UTC),
		TotalGoal:  1000,
		PeriodDays: 365,
	}
}

// Rate is the goal in hours per day.
func (g Goal) Rate() float64 {
	return g.TotalGoal / g.PeriodDays
}

func (g Goal) validate() error {
	if g.PeriodDays <= 0 {
		return fmt.Errorf("stats: goal period %v days: %w", g.PeriodDays, ErrInvalidArgument)
	}
	if g.AnchorDate.IsZero() {
		return fmt.Errorf("stats: goal anchor date missing: %w", ErrInvalidArgument)
	}
	return nil
}

// GoalLine returns, for every day, rate * max(days since anchor, 0). Days
// are counted on the calendar in each day's own location, so the line is
// zero up to and including the anchor date.
func GoalLine(days []time.Time, g Goal) ([]float64, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(days))
	for i, d := range days {
		since := max(DaysBetween(g.AnchorDate, d), 0)
		// total*since/period rather than rate*since keeps whole periods exact.
		out[i] = g.TotalGoal * float64(since) / g.PeriodDays
	}
	return out, nil
}

// DaysBetween counts calendar days from a's date to b's date, ignoring the
// time of day and zone offsets.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int((db.Unix() - da.Unix()) / 86400)
}

// PaceLine is the cumulative target of perDay per day over n days. The
// first day already carries one day's target.
func PaceLine(n int, perDay float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = perDay * float64(i+1)
	}
	return out
}
