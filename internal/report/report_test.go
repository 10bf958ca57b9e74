package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"timeaudit/internal/aggregate"
	"timeaudit/internal/config"
	"timeaudit/internal/event"
	"timeaudit/internal/model"
	"timeaudit/internal/stats"
)

func testOptions(window int) Options {
	return Options{
		Location:          time.UTC,
		Aggregate:         aggregate.DefaultOptions(),
		CreativeLabels:    []string{"Reading", "Programming"},
		Goal:              stats.Goal{AnchorDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TotalGoal: 365, PeriodDays: 365},
		MovingAverageDays: window,
		ReadingGoalPerDay: 20,
	}
}

func sampleRaws() []model.RawEvent {
	return []model.RawEvent{
		{SourceID: "a", Label: "Reading", Start: model.ISO("2024-01-01T08:00:00Z"), End: model.ISO("2024-01-01T10:00:00Z"), Description: "Pages: 30"},
		{SourceID: "a", Label: "Sleep", Start: model.ISO("2024-01-01T22:00:00Z"), End: model.ISO("2024-01-02T06:00:00Z")},
		{SourceID: "a", Label: "Programming", Start: model.ISO("2024-01-02T09:00:00Z"), End: model.ISO("2024-01-02T12:00:00Z")},
		{SourceID: "a", Label: "Reading", Start: model.ISO("2024-01-03T20:00:00Z"), End: model.ISO("2024-01-03T21:00:00Z"), Description: "Pages: 12"},
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	rep, err := Build(sampleRaws(), testOptions(2), now)
	require.NoError(t, err)

	assert.Equal(t, []string{"Programming", "Reading", "Sleep"}, rep.Labels)
	require.Len(t, rep.Days, 3)
	assert.Equal(t, now, rep.GeneratedAt)

	assert.Equal(t, []float64{0, 3, 0}, rep.Hours[0])
	assert.Equal(t, []float64{2, 0, 1}, rep.Hours[1])
	assert.Equal(t, []float64{2, 6, 0}, rep.Hours[2])

	assert.Equal(t, []int{30, 0, 12}, rep.ReadingPages)
	assert.Equal(t, []int{30, 30, 42}, rep.CumulativeReadingPages)
	assert.Equal(t, []float64{20, 40, 60}, rep.ReadingGoalLine)
	assert.Equal(t, []int{1, 1, 0}, rep.ContextSwitches)
	assert.Equal(t, []float64{2, 3, 1}, rep.CreativeHours)
	assert.Equal(t, []float64{2, 5, 6}, rep.CumulativeCreativeHours)
	assert.Equal(t, []float64{0, 1, 2}, rep.GoalLine)

	require.Len(t, rep.HalfPeriod, 3)
	assert.Equal(t, "Reading", rep.HalfPeriod[1].Label)
	require.NotNil(t, rep.HalfPeriod[1].FirstHalf)
	assert.InDelta(t, 2.0/24, *rep.HalfPeriod[1].FirstHalf, 1e-9)
	require.NotNil(t, rep.HalfPeriod[1].SecondHalf)
	assert.InDelta(t, 0, *rep.HalfPeriod[1].SecondHalf, 1e-9)

	assert.Equal(t, rep.Days[1:], rep.ShareDays)
	assert.Equal(t, []float64{1, 0.5}, rep.ContextSwitchAverage)
	require.Len(t, rep.Shares, 3)
	for d := range rep.ShareDays {
		var sum float64
		for _, s := range rep.Shares {
			sum += s.Percent[d]
		}
		assert.InDelta(t, 100, sum, 1e-9)
	}
}

func TestBuildShortPeriodOmitsShares(t *testing.T) {
	rep, err := Build(sampleRaws(), testOptions(7), time.Now())
	require.NoError(t, err)
	assert.Empty(t, rep.Shares)
	assert.Empty(t, rep.ShareDays)
	assert.Empty(t, rep.ContextSwitchAverage)
	assert.Len(t, rep.ReadingGoalLine, 3)
	assert.Equal(t, 7, rep.ShareWindow)
}

func TestBuildRejectsBadEvent(t *testing.T) {
	raws := []model.RawEvent{{SourceID: "x", Label: "A", Start: model.ISO("2024-01-02T10:00:00Z"), End: model.ISO("2024-01-02T09:00:00Z")}}
	_, err := Build(raws, testOptions(1), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrInvalidInput)
}

func TestBuildPropagatesAttributeError(t *testing.T) {
	raws := []model.RawEvent{{Label: "Reading", Start: model.ISO("2024-01-02T10:00:00Z"), End: model.ISO("2024-01-02T11:00:00Z"), Description: "Pages: many"}}
	_, err := Build(raws, testOptions(1), time.Now())
	assert.ErrorIs(t, err, event.ErrAttributeParse)
}

func TestBuildEmpty(t *testing.T) {
	rep, err := Build(nil, testOptions(7), time.Now())
	require.NoError(t, err)
	assert.Empty(t, rep.Labels)
	assert.Empty(t, rep.Days)
	assert.Empty(t, rep.HalfPeriod)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rep, FormatTable))
	assert.Contains(t, buf.String(), "No events")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, opts.Location)
	assert.Equal(t, 7, opts.MovingAverageDays)
	assert.Equal(t, "Pages", opts.Aggregate.PagesAttribute)
	assert.Equal(t, 2019, opts.Goal.AnchorDate.Year())
	assert.Equal(t, 1000.0, opts.Goal.TotalGoal)
	assert.Equal(t, 20.0, opts.ReadingGoalPerDay)

	cfg.Goal.AnchorDate = "soon"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	rep, err := Build(sampleRaws(), testOptions(2), time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rep, FormatJSON))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []any{"2024-01-01", "2024-01-02", "2024-01-03"}, doc["days"])
	assert.Equal(t, []any{30.0, 0.0, 12.0}, doc["reading_pages"])
	assert.Equal(t, []any{30.0, 30.0, 42.0}, doc["cumulative_reading_pages"])
	assert.Equal(t, []any{20.0, 40.0, 60.0}, doc["reading_goal"])
	assert.Equal(t, []any{1.0, 0.5}, doc["context_switch_average"])
	assert.Equal(t, "2024-01-04T00:00:00Z", doc["generated_at"])
}

func TestWriteJSONNullHalf(t *testing.T) {
	ev, err := event.New("A", time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	ev2, err := event.New("A", time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	rep, err := FromEvents([]event.Event{ev, ev2}, testOptions(1), time.Now())
	require.NoError(t, err)
	require.Len(t, rep.HalfPeriod, 1)
	assert.NotNil(t, rep.HalfPeriod[0].FirstHalf)
	assert.Nil(t, rep.HalfPeriod[0].SecondHalf)

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"second_half":null`)
}

func TestWriteCSV(t *testing.T) {
	rep, err := Build(sampleRaws(), testOptions(2), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rep, FormatCSV))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []string{
		"date", "Programming", "Reading", "Sleep",
		"reading_pages", "cumulative_reading_pages", "reading_goal",
		"context_switches", "context_switch_average",
		"creative_hours", "cumulative_creative_hours", "goal",
	}, recs[0])
	assert.Equal(t, []string{"2024-01-01", "0", "2", "2", "30", "30", "20", "1", "", "2", "2", "0"}, recs[1])
	assert.Equal(t, []string{"2024-01-03", "0", "1", "0", "12", "42", "60", "0", "0.5", "1", "6", "2"}, recs[3])
}

func TestWriteYAML(t *testing.T) {
	rep, err := Build(sampleRaws(), testOptions(2), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rep, FormatYAML))

	var doc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, rep.Labels, doc.Labels)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, doc.ShareDays)
}

func TestWriteTable(t *testing.T) {
	rep, err := Build(sampleRaws(), testOptions(2), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rep, "TABLE"))
	out := buf.String()
	assert.Contains(t, out, "2024-01-01 .. 2024-01-03 (3 days)")
	assert.Contains(t, out, "Programming")
	assert.Contains(t, out, "Reading pages:      42 (goal 60)")
	assert.Contains(t, out, "Context switches:   2")
}

func TestWriteTableTruncatesLabels(t *testing.T) {
	ev, err := event.New("A very long label that will not fit", time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	rep, err := FromEvents([]event.Event{ev}, testOptions(1), time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteWidth(&buf, rep, FormatTable, 60))
	assert.NotContains(t, buf.String(), "will not fit")
	assert.Contains(t, buf.String(), "…")

	buf.Reset()
	require.NoError(t, WriteWidth(&buf, rep, FormatTable, 0))
	assert.Contains(t, buf.String(), "will not fit")
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, &Report{}, "xml")
	assert.ErrorContains(t, err, "unknown format")
}
