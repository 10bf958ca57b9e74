package event

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"timeaudit/internal/model"
)

// Event is a single labeled time interval together with the attributes
// parsed from its description. Events are immutable once constructed.
type Event struct {
	label       string
	start       time.Time
	end         time.Time
	description string

	// attrs is never written after construction and may be shared between
	// an event and its fragments.
	attrs map[string]string
}

// New builds an Event from already-parsed timestamps.
//
// Zero timestamps are rejected, as is an interval whose end precedes its
// start. Both errors wrap ErrInvalidInput.
func New(label string, start, end time.Time, description string) (Event, error) {
	if start.IsZero() {
		return Event{}, fmt.Errorf("event %q: missing start: %w", label, ErrInvalidInput)
	}
	if end.IsZero() {
		return Event{}, fmt.Errorf("event %q: missing end: %w", label, ErrInvalidInput)
	}
	if end.Before(start) {
		return Event{}, fmt.Errorf("event %q: end %s before start %s: %w",
			label, end.Format(time.RFC3339), start.Format(time.RFC3339), ErrInvalidInput)
	}
	return Event{
		label:       label,
		start:       start,
		end:         end,
		description: description,
		attrs:       ParseAttributes(description),
	}, nil
}

// Parse builds an Event from ISO-8601 strings. Values without a UTC offset
// are interpreted in loc (time.Local when nil).
func Parse(label, start, end, description string, loc *time.Location) (Event, error) {
	s, err := ParseTime(start, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: start: %w", label, err)
	}
	e, err := ParseTime(end, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: end: %w", label, err)
	}
	return New(label, s, e, description)
}

// FromRaw converts an event-source tuple into an Event. Parsed timestamps
// are used as-is, text timestamps are parsed with ParseTime. When loc is
// non-nil both ends are converted into it so that day boundaries follow the
// configured timezone.
func FromRaw(raw model.RawEvent, loc *time.Location) (Event, error) {
	start, err := resolve(raw.Start, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: start: %w", raw.Label, err)
	}
	end, err := resolve(raw.End, loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: end: %w", raw.Label, err)
	}
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	return New(raw.Label, start, end, raw.Description)
}

func resolve(ts model.Timestamp, loc *time.Location) (time.Time, error) {
	if !ts.Time.IsZero() {
		return ts.Time, nil
	}
	if strings.TrimSpace(ts.Text) == "" {
		return time.Time{}, fmt.Errorf("no timestamp given: %w", ErrInvalidInput)
	}
	return ParseTime(ts.Text, loc)
}

var (
	offsetLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// ParseTime parses an ISO-8601 timestamp. Strings carrying an offset keep
// it; naive strings are placed in loc (time.Local when nil).
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp: %w", ErrInvalidInput)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", s, ErrInvalidInput)
}

func (e Event) Label() string       { return e.label }
func (e Event) Start() time.Time    { return e.start }
func (e Event) End() time.Time      { return e.end }
func (e Event) Description() string { return e.description }

// Duration returns end - start; never negative.
func (e Event) Duration() time.Duration {
	return e.end.Sub(e.start)
}

// Hours returns the duration in fractional hours.
func (e Event) Hours() float64 {
	return e.Duration().Hours()
}

// Day returns midnight of the start's calendar day in the start's location.
func (e Event) Day() time.Time {
	return Midnight(e.start)
}

// Attributes returns a copy of the parsed description attributes.
func (e Event) Attributes() map[string]string {
	return maps.Clone(e.attrs)
}

// Attribute looks up a single description attribute.
func (e Event) Attribute(key string) (string, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

// IntAttribute looks up key and converts it to an int. The bool result is
// false when the key is absent; a present but non-numeric value returns an
// error wrapping ErrAttributeParse.
func (e Event) IntAttribute(key string) (int, bool, error) {
	v, ok := e.attrs[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, true, fmt.Errorf("event %q: attribute %s=%q: %w: %w", e.label, key, v, ErrAttributeParse, err)
	}
	return n, true, nil
}

func (e Event) String() string {
	return fmt.Sprintf("Event(%q, %s, %s)", e.label, e.start.Format(time.RFC3339), e.end.Format(time.RFC3339))
}
