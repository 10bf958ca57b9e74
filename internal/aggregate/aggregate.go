package aggregate

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"timeaudit/internal/event"
)

// ErrInternalConsistency means a fragment could not be placed into the day
// or label index. It indicates a bug in splitting or indexing, never bad input.
var ErrInternalConsistency = errors.New("internal consistency error")

const (
	DefaultReadingLabel   = "Reading"
	DefaultPagesAttribute = "Pages"
)

// Options selects which events feed the reading-pages series.
type Options struct {
	// ReadingLabel is matched as a substring of the event label.
	ReadingLabel string
	// PagesAttribute is the integer description attribute summed per day.
	PagesAttribute string
}

func DefaultOptions() Options {
	return Options{
		ReadingLabel:   DefaultReadingLabel,
		PagesAttribute: DefaultPagesAttribute,
	}
}

// Audit is the day x label decomposition of a set of events.
type Audit struct {
	// Labels are the distinct labels, sorted; position is the row index.
	Labels []string
	// Days are the distinct day starts (midnight in each fragment's
	// location), ascending; position is the column index.
	Days []time.Time
	// Hours[label][day] is the total hours of that label within that day.
	Hours *Matrix
	// ReadingPages is the per-day sum of the pages attribute on reading events.
	ReadingPages []int
	// ContextSwitches is the per-day fragment count minus one, floored at 0.
	ContextSwitches []int
	// Fragments are the day-confined events sorted by start.
	Fragments []event.Event

	labelIndex map[string]int
	dayIndex   map[int64]int
}

// Build aggregates events using DefaultOptions.
func Build(events []event.Event) (*Audit, error) {
	return BuildWithOptions(events, DefaultOptions())
}

// BuildWithOptions splits every event at day boundaries, indexes labels
// and days, and accumulates hours, reading pages and context switches.
func BuildWithOptions(events []event.Event, opts Options) (*Audit, error) {
	if opts.ReadingLabel == "" {
		opts.ReadingLabel = DefaultReadingLabel
	}
	if opts.PagesAttribute == "" {
		opts.PagesAttribute = DefaultPagesAttribute
	}

	frags := event.SplitAll(events)
	slices.SortStableFunc(frags, compareFragments)

	a := &Audit{Fragments: frags}
	a.indexLabels()
	a.indexDays()
	a.Hours = NewMatrix(len(a.Labels), len(a.Days))
	a.ReadingPages = make([]int, len(a.Days))
	a.ContextSwitches = make([]int, len(a.Days))

	counts := make([]int, len(a.Days))
	for _, f := range frags {
		day, err := a.dayOf(f)
		if err != nil {
			return nil, err
		}
		row, ok := a.labelIndex[f.Label()]
		if !ok {
			return nil, fmt.Errorf("aggregate: label %q not indexed: %w", f.Label(), ErrInternalConsistency)
		}
		a.Hours.add(row, day, f.Hours())
		counts[day]++

		if !strings.Contains(f.Label(), opts.ReadingLabel) {
			continue
		}
		pages, ok, err := f.IntAttribute(opts.PagesAttribute)
		if err != nil {
			return nil, fmt.Errorf("aggregate: reading pages on %s: %w", f.Day().Format(time.DateOnly), err)
		}
		if ok {
			a.ReadingPages[day] += pages
		}
	}

	for i, n := range counts {
		a.ContextSwitches[i] = max(n-1, 0)
	}
	return a, nil
}

// compareFragments orders by start, then label, then end, so that the
// result does not depend on input order.
func compareFragments(x, y event.Event) int {
	if c := x.Start().Compare(y.Start()); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Label(), y.Label()); c != 0 {
		return c
	}
	return x.End().Compare(y.End())
}

func (a *Audit) indexLabels() {
	a.Labels = lo.Uniq(lo.Map(a.Fragments, func(f event.Event, _ int) string {
		return f.Label()
	}))
	slices.Sort(a.Labels)
	a.labelIndex = make(map[string]int, len(a.Labels))
	for i, l := range a.Labels {
		a.labelIndex[l] = i
	}
}

func (a *Audit) indexDays() {
	days := lo.UniqBy(lo.Map(a.Fragments, func(f event.Event, _ int) time.Time {
		return f.Day()
	}), dayKey)
	slices.SortFunc(days, func(x, y time.Time) int { return x.Compare(y) })
	a.Days = days
	a.dayIndex = make(map[int64]int, len(days))
	for i, d := range days {
		a.dayIndex[dayKey(d)] = i
	}
}

func dayKey(t time.Time) int64 {
	return t.Unix()
}

func (a *Audit) dayOf(f event.Event) (int, error) {
	i, ok := a.dayIndex[dayKey(f.Day())]
	if !ok {
		return 0, fmt.Errorf("aggregate: day %s of %s not indexed: %w", f.Day().Format(time.RFC3339), f, ErrInternalConsistency)
	}
	return i, nil
}

// LabelIndex returns the row of label.
func (a *Audit) LabelIndex(label string) (int, bool) {
	i, ok := a.labelIndex[label]
	return i, ok
}

// DayIndex returns the column of the day containing t, using t's location.
func (a *Audit) DayIndex(t time.Time) (int, bool) {
	i, ok := a.dayIndex[dayKey(event.Midnight(t))]
	return i, ok
}

// Row returns the per-day hours of label, or nil if the label is unknown.
func (a *Audit) Row(label string) []float64 {
	i, ok := a.labelIndex[label]
	if !ok {
		return nil
	}
	return a.Hours.Row(i)
}

// NumDays is the length of every per-day series.
func (a *Audit) NumDays() int {
	return len(a.Days)
}
