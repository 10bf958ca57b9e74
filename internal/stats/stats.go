package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"timeaudit/internal/aggregate"
)

// ErrInvalidArgument reports an argument outside an operation's domain,
// e.g. a moving-average window larger than the series.
var ErrInvalidArgument = errors.New("invalid argument")

// MovingAverage returns the unweighted mean of every run of window
// consecutive values ("valid" convolution: no padding), so the result has
// len(series)-window+1 entries.
func MovingAverage(series []float64, window int) ([]float64, error) {
	if window <= 0 || window > len(series) {
		return nil, fmt.Errorf("stats: moving average window %d for series of %d: %w", window, len(series), ErrInvalidArgument)
	}

	out := make([]float64, len(series)-window+1)
	w := float64(window)
	for i := range out {
		var sum float64
		for _, v := range series[i : i+window] {
			sum += v
		}
		out[i] = sum / w
	}
	return out, nil
}

// CumulativeSum returns the running total of series.
func CumulativeSum(series []float64) []float64 {
	out := make([]float64, len(series))
	var total float64
	for i, v := range series {
		total += v
		out[i] = total
	}
	return out
}

// Ints converts an integer series for use with the float helpers.
func Ints(series []int) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = float64(v)
	}
	return out
}

// CreativeHours sums the rows of labels in allow, returning the per-day
// total and its running sum. Allowed labels absent from the audit are
// skipped.
func CreativeHours(a *aggregate.Audit, allow []string) (daily, cumulative []float64) {
	daily = make([]float64, a.NumDays())
	for _, label := range allow {
		row, ok := a.LabelIndex(label)
		if !ok {
			continue
		}
		for d := range daily {
			daily[d] += a.Hours.At(row, d)
		}
	}
	return daily, CumulativeSum(daily)
}

// HalfPeriodAverages splits the day axis at n/2 and returns, per label, the
// mean daily fraction of 24 hours over [0, n/2) and over [n/2, n-1). The
// final day is left out of the second half since it is usually partial.
// With fewer than two days both results are empty; an empty half yields NaN.
func HalfPeriodAverages(m *aggregate.Matrix) (first, second []float64) {
	n := m.Cols()
	if n < 2 {
		return []float64{}, []float64{}
	}
	mid := n / 2
	first = make([]float64, m.Rows())
	second = make([]float64, m.Rows())
	for r := 0; r < m.Rows(); r++ {
		first[r] = meanFraction(m, r, 0, mid)
		second[r] = meanFraction(m, r, mid, n-1)
	}
	return first, second
}

func meanFraction(m *aggregate.Matrix, row, from, to int) float64 {
	if to <= from {
		return math.NaN()
	}
	var s float64
	for c := from; c < to; c++ {
		s += m.At(row, c) / 24
	}
	return s / float64(to-from)
}

// Share is one label's smoothed percentage of tracked time per day.
type Share struct {
	Label   string
	Percent []float64
}

// DailyShares smooths every label row with a window-day moving average and
// normalizes each day so that labels sum to 100. Days with no tracked time
// stay at zero. The result covers days[window-1:] and is ordered by each
// label's final share, ascending.
func DailyShares(a *aggregate.Audit, window int) ([]Share, error) {
	rows := make([][]float64, len(a.Labels))
	for r := range rows {
		smoothed, err := MovingAverage(a.Hours.Row(r), window)
		if err != nil {
			return nil, err
		}
		rows[r] = smoothed
	}

	width := a.NumDays() - window + 1
	for c := 0; c < width; c++ {
		var norm float64
		for r := range rows {
			norm += rows[r][c]
		}
		if norm == 0 {
			norm = 1
		}
		for r := range rows {
			rows[r][c] = rows[r][c] / norm * 100
		}
	}

	shares := make([]Share, len(rows))
	for r := range rows {
		shares[r] = Share{Label: a.Labels[r], Percent: rows[r]}
	}
	slices.SortStableFunc(shares, func(x, y Share) int {
		return compareFloat(last(x.Percent), last(y.Percent))
	})
	return shares, nil
}

func last(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
