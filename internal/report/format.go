package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"timeaudit/internal/stats"
)

const (
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTable = "table"
	FormatYAML  = "yaml"
)

const minLabelWidth = 8

// Formats lists the values accepted by Write.
var Formats = []string{FormatTable, FormatJSON, FormatCSV, FormatYAML}

// document is the serialized form of a Report: dates as YYYY-MM-DD and
// no presentation metadata.
type document struct {
	GeneratedAt             string         `json:"generated_at" yaml:"generated_at"`
	Labels                  []string       `json:"labels" yaml:"labels"`
	Days                    []string       `json:"days" yaml:"days"`
	Hours                   [][]float64    `json:"hours" yaml:"hours"`
	ReadingPages            []int          `json:"reading_pages" yaml:"reading_pages"`
	CumulativeReadingPages  []int          `json:"cumulative_reading_pages" yaml:"cumulative_reading_pages"`
	ReadingGoalLine         []float64      `json:"reading_goal" yaml:"reading_goal"`
	ContextSwitches         []int          `json:"context_switches" yaml:"context_switches"`
	CreativeHours           []float64      `json:"creative_hours" yaml:"creative_hours"`
	CumulativeCreativeHours []float64      `json:"cumulative_creative_hours" yaml:"cumulative_creative_hours"`
	GoalLine                []float64      `json:"goal_line" yaml:"goal_line"`
	HalfPeriod              []LabelAverage `json:"half_period_averages" yaml:"half_period_averages"`
	ShareWindow             int            `json:"share_window" yaml:"share_window"`
	ShareDays               []string       `json:"share_days" yaml:"share_days"`
	Shares                  []shareDoc     `json:"shares" yaml:"shares"`
	ContextSwitchAverage    []float64      `json:"context_switch_average" yaml:"context_switch_average"`
}

type shareDoc struct {
	Label   string    `json:"label" yaml:"label"`
	Percent []float64 `json:"percent" yaml:"percent"`
}

func dates(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(time.DateOnly)
	}
	return out
}

func (r *Report) document() document {
	shares := make([]shareDoc, len(r.Shares))
	for i, s := range r.Shares {
		shares[i] = shareDoc{Label: s.Label, Percent: s.Percent}
	}
	return document{
		GeneratedAt:             r.GeneratedAt.Format(time.RFC3339),
		Labels:                  r.Labels,
		Days:                    dates(r.Days),
		Hours:                   r.Hours,
		ReadingPages:            r.ReadingPages,
		CumulativeReadingPages:  r.CumulativeReadingPages,
		ReadingGoalLine:         r.ReadingGoalLine,
		ContextSwitches:         r.ContextSwitches,
		CreativeHours:           r.CreativeHours,
		CumulativeCreativeHours: r.CumulativeCreativeHours,
		GoalLine:                r.GoalLine,
		HalfPeriod:              r.HalfPeriod,
		ShareWindow:             r.ShareWindow,
		ShareDays:               dates(r.ShareDays),
		Shares:                  shares,
		ContextSwitchAverage:    r.ContextSwitchAverage,
	}
}

// Write renders r to w in the given format.
func Write(w io.Writer, r *Report, format string) error {
	return WriteWidth(w, r, format, 0)
}

// WriteWidth is Write with a terminal width for the table format; the label
// column is truncated so rows fit. A width of 0 disables truncation.
func WriteWidth(w io.Writer, r *Report, format string, width int) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r.document()); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		return writeTable(w, r, width)
	default:
		return fmt.Errorf("report: unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// MarshalJSON encodes the serialized document form.
func (r *Report) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(r.document())
}

func writeJSON(w io.Writer, r *Report) error {
	data, err := sonic.ConfigStd.MarshalIndent(r.document(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// writeCSV emits one row per day: date, hours per label, then the derived
// series. Smoothed columns are empty before the window fills.
func writeCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)

	header := append([]string{"date"}, r.Labels...)
	header = append(header,
		"reading_pages", "cumulative_reading_pages", "reading_goal",
		"context_switches", "context_switch_average",
		"creative_hours", "cumulative_creative_hours", "goal")
	if err := cw.Write(header); err != nil {
		return err
	}

	offset := len(r.Days) - len(r.ContextSwitchAverage)
	for d, day := range r.Days {
		avg := ""
		if len(r.ContextSwitchAverage) > 0 && d >= offset {
			avg = formatFloat(r.ContextSwitchAverage[d-offset])
		}
		rec := make([]string, 0, len(header))
		rec = append(rec, day.Format(time.DateOnly))
		for l := range r.Labels {
			rec = append(rec, formatFloat(r.Hours[l][d]))
		}
		rec = append(rec,
			strconv.Itoa(r.ReadingPages[d]),
			strconv.Itoa(r.CumulativeReadingPages[d]),
			formatFloat(r.ReadingGoalLine[d]),
			strconv.Itoa(r.ContextSwitches[d]),
			avg,
			formatFloat(r.CreativeHours[d]),
			formatFloat(r.CumulativeCreativeHours[d]),
			formatFloat(r.GoalLine[d]),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeTable prints a per-label summary followed by the period totals.
func writeTable(w io.Writer, r *Report, width int) error {
	if len(r.Days) == 0 {
		_, err := fmt.Fprintln(w, "No events in range.")
		return err
	}

	headers := []string{"Label", "Total (h)", "Per day (h)", "1st half", "2nd half", "Share"}
	rows := make([][]string, 0, len(r.Labels))
	finalShare := map[string]float64{}
	for _, s := range r.Shares {
		finalShare[s.Label] = lastValue(s)
	}
	for i, label := range r.Labels {
		total := r.TotalHours(i)
		row := []string{
			label,
			fmt.Sprintf("%.1f", total),
			fmt.Sprintf("%.2f", total/float64(len(r.Days))),
			"-", "-", "-",
		}
		if i < len(r.HalfPeriod) {
			row[3] = percent(r.HalfPeriod[i].FirstHalf)
			row[4] = percent(r.HalfPeriod[i].SecondHalf)
		}
		if v, ok := finalShare[label]; ok {
			row[5] = fmt.Sprintf("%.1f%%", v)
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	if width > 0 {
		total := 2 * (len(widths) - 1)
		for _, wd := range widths {
			total += wd
		}
		if over := total - width; over > 0 {
			widths[0] = max(minLabelWidth, widths[0]-over)
			for _, row := range rows {
				row[0] = runewidth.Truncate(row[0], widths[0], "…")
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Time audit %s .. %s (%d days)\n\n",
		r.Days[0].Format(time.DateOnly), r.Days[len(r.Days)-1].Format(time.DateOnly), len(r.Days))
	writeRow(&b, headers, widths)
	sep := make([]string, len(widths))
	for i, wd := range widths {
		sep[i] = strings.Repeat("-", wd)
	}
	writeRow(&b, sep, widths)
	for _, row := range rows {
		writeRow(&b, row, widths)
	}

	last := len(r.Days) - 1
	var pages, switches int
	for d := range r.Days {
		pages += r.ReadingPages[d]
		switches += r.ContextSwitches[d]
	}
	fmt.Fprintf(&b, "\nReading pages:      %d (goal %.0f)\n", pages, r.ReadingGoalLine[last])
	fmt.Fprintf(&b, "Context switches:   %d (%.1f/day)\n", switches, float64(switches)/float64(len(r.Days)))
	fmt.Fprintf(&b, "Creative hours:     %.1f (goal %.1f)\n", r.CumulativeCreativeHours[last], r.GoalLine[last])

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == 0 {
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		} else {
			b.WriteString(runewidth.FillLeft(cell, widths[i]))
		}
	}
	b.WriteString("\n")
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

func lastValue(s stats.Share) float64 {
	if len(s.Percent) == 0 {
		return 0
	}
	return s.Percent[len(s.Percent)-1]
}
