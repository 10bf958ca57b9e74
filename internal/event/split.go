package event

import (
	"iter"
	"slices"
	"time"
)

// Midnight truncates t to 00:00 of its calendar day in t's own location.
// Unlike t.Truncate(24*time.Hour) this respects the zone offset and DST.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// nextMidnight returns the first day boundary strictly after t's day start.
func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// Fragments lazily decomposes e into day-confined events in the start's
// location. Each fragment starts where the previous one ended; a boundary
// is only used as a fragment end when it lies strictly before e's end, so an
// event ending exactly at midnight produces no trailing empty fragment.
// An event that fits in one day yields itself.
func (e Event) Fragments() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		loc := e.start.Location()
		cur := e.start
		for {
			boundary := nextMidnight(cur.In(loc))
			if !boundary.Before(e.end) {
				yield(e.fragment(cur, e.end))
				return
			}
			if !yield(e.fragment(cur, boundary)) {
				return
			}
			cur = boundary
		}
	}
}

// SplitByDate materializes Fragments.
func (e Event) SplitByDate() []Event {
	return slices.Collect(e.Fragments())
}

// fragment copies e over a narrower interval. Label and description are
// unchanged, so the attributes are identical and can be shared.
func (e Event) fragment(start, end time.Time) Event {
	return Event{
		label:       e.label,
		start:       start,
		end:         end,
		description: e.description,
		attrs:       e.attrs,
	}
}

// SplitAll flattens the fragments of every event, preserving input order.
func SplitAll(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		for f := range ev.Fragments() {
			out = append(out, f)
		}
	}
	return out
}
