package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeaudit/internal/aggregate"
	"timeaudit/internal/event"
)

func buildAudit(t *testing.T, spec map[string][]float64) *aggregate.Audit {
	t.Helper()
	var events []event.Event
	for label, hours := range spec {
		for d, h := range hours {
			if h == 0 {
				continue
			}
			start := time.Date(2024, 1, 1+d, 0, 0, 0, 0, time.UTC)
			ev, err := event.New(label, start, start.Add(time.Duration(h*float64(time.Hour))), "")
			require.NoError(t, err)
			events = append(events, ev)
		}
	}
	a, err := aggregate.Build(events)
	require.NoError(t, err)
	return a
}

func TestMovingAverage(t *testing.T) {
	got, err := MovingAverage([]float64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, got)

	got, err = MovingAverage([]float64{3, 6, 9}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{6}, got)
}

func TestMovingAverageIdentity(t *testing.T) {
	series := []float64{0.1, 0.7, 3.3333, 12, 0, 5.5}
	got, err := MovingAverage(series, 1)
	require.NoError(t, err)
	assert.Equal(t, series, got)
}

func TestMovingAverageInvalidWindow(t *testing.T) {
	for _, w := range []int{-1, 0, 5} {
		_, err := MovingAverage([]float64{1, 2, 3, 4}, w)
		assert.ErrorIs(t, err, ErrInvalidArgument, "window %d", w)
	}
	_, err := MovingAverage(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCumulativeSum(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 6, 6}, CumulativeSum([]float64{1, 2, 3, 0}))
	assert.Empty(t, CumulativeSum(nil))
	assert.Equal(t, []float64{2, 5}, CumulativeSum(Ints([]int{2, 3})))
}

func TestCreativeHours(t *testing.T) {
	a := buildAudit(t, map[string][]float64{
		"Reading":     {1, 0, 2},
		"Programming": {2, 3, 0},
		"Sleep":       {8, 8, 8},
	})

	daily, cumulative := CreativeHours(a, []string{"Reading", "Programming", "Networking"})
	assert.Equal(t, []float64{3, 3, 2}, daily)
	assert.Equal(t, []float64{3, 6, 8}, cumulative)

	daily, cumulative = CreativeHours(a, nil)
	assert.Equal(t, []float64{0, 0, 0}, daily)
	assert.Equal(t, []float64{0, 0, 0}, cumulative)
}

func TestHalfPeriodAverages(t *testing.T) {
	a := buildAudit(t, map[string][]float64{
		"Sleep": {6, 12, 12, 6, 24},
		"Meta":  {0, 0, 0, 0, 0.5},
	})

	first, second := HalfPeriodAverages(a.Hours)
	require.Len(t, first, 2)

	sleep, _ := a.LabelIndex("Sleep")
	meta, _ := a.LabelIndex("Meta")
	// First half is days [0,2), second half days [2,4); day 4 is excluded.
	assert.InDelta(t, (6.0+12.0)/24/2, first[sleep], 1e-12)
	assert.InDelta(t, (12.0+6.0)/24/2, second[sleep], 1e-12)
	assert.Zero(t, first[meta])
	assert.Zero(t, second[meta])
}

func TestHalfPeriodAveragesShort(t *testing.T) {
	one := buildAudit(t, map[string][]float64{"Sleep": {8}})
	first, second := HalfPeriodAverages(one.Hours)
	assert.Empty(t, first)
	assert.Empty(t, second)

	two := buildAudit(t, map[string][]float64{"Sleep": {8, 8}})
	first, second = HalfPeriodAverages(two.Hours)
	require.Len(t, first, 1)
	assert.InDelta(t, 8.0/24, first[0], 1e-12)
	assert.True(t, math.IsNaN(second[0]))
}

func TestDailyShares(t *testing.T) {
	a := buildAudit(t, map[string][]float64{
		"Sleep":       {8, 8, 8, 8},
		"Programming": {8, 8, 0, 0},
		"Reading":     {0, 0, 8, 8},
	})

	shares, err := DailyShares(a, 2)
	require.NoError(t, err)
	require.Len(t, shares, 3)

	// Ordered by final share ascending.
	assert.Equal(t, "Programming", shares[0].Label)
	for _, s := range shares {
		assert.Len(t, s.Percent, 3)
	}
	for c := 0; c < 3; c++ {
		var total float64
		for _, s := range shares {
			total += s.Percent[c]
		}
		assert.InDelta(t, 100, total, 1e-9)
	}
	assert.InDelta(t, 50, shares[2].Percent[0], 1e-9)

	_, err = DailyShares(a, 10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGoalLine(t *testing.T) {
	g := Goal{
		AnchorDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		TotalGoal:  1000,
		PeriodDays: 365,
	}

	days := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
	}
	line, err := GoalLine(days, g)
	require.NoError(t, err)

	assert.Zero(t, line[0])
	assert.Zero(t, line[1])
	assert.Zero(t, line[2])
	assert.InDelta(t, g.Rate(), line[3], 1e-12)
	// 2024 is a leap year: 2025-01-09 is 365 days after 2024-01-10.
	assert.Equal(t, 1000.0, line[4])
}

func TestGoalLineValidation(t *testing.T) {
	_, err := GoalLine(nil, Goal{AnchorDate: time.Now(), TotalGoal: 10})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = GoalLine(nil, Goal{TotalGoal: 10, PeriodDays: 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDefaultGoal(t *testing.T) {
	g := DefaultGoal()
	assert.InDelta(t, 1000.0/365.0, g.Rate(), 1e-12)
	assert.Equal(t, 2019, g.AnchorDate.Year())
}

func TestDaysBetweenIgnoresZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	a := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 2, 1, 0, 0, 0, tokyo)
	assert.Equal(t, 1, DaysBetween(a, b))
}

func TestDaysBetweenFarApart(t *testing.T) {
	anchor := time.Date(2019, 12, 21, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 138803, DaysBetween(anchor, time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -138803, DaysBetween(time.Date(2400, 1, 1, 12, 0, 0, 0, time.UTC), anchor))
}

func TestPaceLine(t *testing.T) {
	assert.Equal(t, []float64{20, 40, 60}, PaceLine(3, 20))
	assert.Empty(t, PaceLine(0, 20))
}
