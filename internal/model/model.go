package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Timestamp carries a point in time as handed over by an event source.
// Exactly one of Time or Text is expected to be set: providers that already
// decode timestamps (ICS) fill Time, text-based providers (JSONL) fill Text
// with an ISO-8601 value that is parsed during event construction.
type Timestamp struct {
	Time time.Time
	Text string
}

// At wraps an already-parsed time.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ISO wraps an unparsed ISO-8601 string.
func ISO(s string) Timestamp {
	return Timestamp{Text: s}
}

// IsZero reports whether neither representation is present.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero() && strings.TrimSpace(t.Text) == ""
}

// UnmarshalJSON accepts a JSON string; the value is kept verbatim and parsed
// later so that malformed input surfaces as an event construction error.
// Non-string tokens are kept as their raw text for the same reason.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = Timestamp{Text: raw}
		return nil
	}
	*t = Timestamp{Text: s}
	return nil
}

// MarshalJSON writes the parsed time in RFC3339 when available.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Time.IsZero() {
		return json.Marshal(t.Time.Format(time.RFC3339Nano))
	}
	return json.Marshal(t.Text)
}

// RawEvent is the label/start/end/description tuple produced by an event
// source before any validation or attribute parsing.
type RawEvent struct {
	// SourceID identifies the configured source the event came from.
	SourceID string `json:"source_id,omitempty"`

	Label       string    `json:"label"`
	Start       Timestamp `json:"start"`
	End         Timestamp `json:"end"`
	Description string    `json:"description,omitempty"`
}

// LabelSeparator joins several labels in one summary. A bare comma is not
// a separator, so "A,B" stays a single label.
const LabelSeparator = ", "

// SplitLabels expands a summary such as "Reading, Fiction" into one
// RawEvent per trimmed, non-empty label. All copies share start, end and
// description. A summary without separators is returned unchanged; one made
// only of separators yields nothing.
func (r RawEvent) SplitLabels() []RawEvent {
	parts := strings.Split(r.Label, LabelSeparator)
	if len(parts) == 1 {
		return []RawEvent{r}
	}
	out := make([]RawEvent, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		cp := r
		cp.Label = p
		out = append(out, cp)
	}
	return out
}
