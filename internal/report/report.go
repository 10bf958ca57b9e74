package report

import (
	"fmt"
	"math"
	"time"

	"timeaudit/internal/aggregate"
	"timeaudit/internal/config"
	"timeaudit/internal/event"
	"timeaudit/internal/model"
	"timeaudit/internal/stats"
)

// Options are the explicit inputs of a report; nothing is read from the
// environment.
type Options struct {
	// Location is applied to every event; day boundaries follow it.
	Location *time.Location

	Aggregate aggregate.Options

	CreativeLabels    []string
	Goal              stats.Goal
	MovingAverageDays int

	// ReadingGoalPerDay is the slope of ReadingGoalLine in pages.
	ReadingGoalPerDay float64
}

// OptionsFromConfig maps a normalized config onto report options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	anchor, err := cfg.AnchorDate()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Location: loc,
		Aggregate: aggregate.Options{
			ReadingLabel:   cfg.ReadingLabel,
			PagesAttribute: cfg.PagesAttribute,
		},
		CreativeLabels: cfg.CreativeLabels,
		Goal: stats.Goal{
			AnchorDate: anchor,
			TotalGoal:  cfg.Goal.TotalGoal,
			PeriodDays: cfg.Goal.GoalPeriodDays,
		},
		MovingAverageDays: cfg.MovingAverageDays,
		ReadingGoalPerDay: cfg.ReadingGoalPagesPerDay,
	}, nil
}

// LabelAverage is a label's mean daily share of 24h in each half of the
// period. A nil value means the half had no days.
type LabelAverage struct {
	Label      string   `json:"label" yaml:"label"`
	FirstHalf  *float64 `json:"first_half" yaml:"first_half"`
	SecondHalf *float64 `json:"second_half" yaml:"second_half"`
}

// Report holds every series handed to a renderer. All per-day slices have
// one entry per element of Days.
type Report struct {
	GeneratedAt time.Time

	Labels []string
	Days   []time.Time
	// Hours[label][day], aligned with Labels and Days.
	Hours [][]float64

	ReadingPages           []int
	CumulativeReadingPages []int
	ReadingGoalLine        []float64
	ContextSwitches        []int

	CreativeHours           []float64
	CumulativeCreativeHours []float64
	GoalLine                []float64

	HalfPeriod []LabelAverage

	// Shares and ContextSwitchAverage cover ShareDays, the days from
	// MovingAverageDays-1 onwards. All three are empty when there are fewer
	// days than the window.
	ShareWindow          int
	ShareDays            []time.Time
	Shares               []stats.Share
	ContextSwitchAverage []float64
}

// Build converts raw events and assembles the report.
func Build(raws []model.RawEvent, opts Options, now time.Time) (*Report, error) {
	events := make([]event.Event, 0, len(raws))
	for _, r := range raws {
		ev, err := event.FromRaw(r, opts.Location)
		if err != nil {
			return nil, fmt.Errorf("report: source %s: %w", r.SourceID, err)
		}
		events = append(events, ev)
	}
	return FromEvents(events, opts, now)
}

// FromEvents assembles the report from constructed events.
func FromEvents(events []event.Event, opts Options, now time.Time) (*Report, error) {
	audit, err := aggregate.BuildWithOptions(events, opts.Aggregate)
	if err != nil {
		return nil, err
	}

	goal, err := stats.GoalLine(audit.Days, opts.Goal)
	if err != nil {
		return nil, err
	}

	daily, cumulative := stats.CreativeHours(audit, opts.CreativeLabels)

	r := &Report{
		GeneratedAt:             now,
		Labels:                  audit.Labels,
		Days:                    audit.Days,
		Hours:                   audit.Hours.Table(),
		ReadingPages:            audit.ReadingPages,
		CumulativeReadingPages:  cumulativeInts(audit.ReadingPages),
		ReadingGoalLine:         stats.PaceLine(audit.NumDays(), opts.ReadingGoalPerDay),
		ContextSwitches:         audit.ContextSwitches,
		CreativeHours:           daily,
		CumulativeCreativeHours: cumulative,
		GoalLine:                goal,
		ShareWindow:             opts.MovingAverageDays,
	}

	first, second := stats.HalfPeriodAverages(audit.Hours)
	if len(first) > 0 {
		r.HalfPeriod = make([]LabelAverage, len(audit.Labels))
		for i, label := range audit.Labels {
			r.HalfPeriod[i] = LabelAverage{
				Label:      label,
				FirstHalf:  finite(first[i]),
				SecondHalf: finite(second[i]),
			}
		}
	}

	if opts.MovingAverageDays > 0 && audit.NumDays() >= opts.MovingAverageDays {
		shares, err := stats.DailyShares(audit, opts.MovingAverageDays)
		if err != nil {
			return nil, err
		}
		switches, err := stats.MovingAverage(stats.Ints(audit.ContextSwitches), opts.MovingAverageDays)
		if err != nil {
			return nil, err
		}
		r.Shares = shares
		r.ContextSwitchAverage = switches
		r.ShareDays = audit.Days[opts.MovingAverageDays-1:]
	}
	return r, nil
}

func cumulativeInts(series []int) []int {
	out := make([]int, len(series))
	var sum int
	for i, v := range series {
		sum += v
		out[i] = sum
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// TotalHours sums a label's hours over all days.
func (r *Report) TotalHours(label int) float64 {
	var s float64
	for _, v := range r.Hours[label] {
		s += v
	}
	return s
}
