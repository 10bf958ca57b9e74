package ics

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timeaudit/internal/log"
	"timeaudit/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the zone every occurrence is converted into. Nil means
	// time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the occurrences that are kept; an
	// occurrence is kept when it overlaps the range.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means 5000.
	MaxOccurrencesPerEvent int

	// IncludeAllDay keeps all-day events as 24h blocks. Tracked time is
	// normally logged with explicit times, so these are dropped by default.
	IncludeAllDay bool
}

// ExpandResult is the flattened set of occurrences as raw audit events.
type ExpandResult struct {
	Events []model.RawEvent
	// Truncated lists UIDs whose recurrence hit the cap.
	Truncated []string
	// SkippedAllDay counts all-day occurrences dropped.
	SkippedAllDay int
}

type occurrence struct {
	uid   string
	ev    VEvent
	start time.Time
	end   time.Time
}

// Expand resolves RRULE, EXDATE and RECURRENCE-ID overrides within the
// configured range and returns one RawEvent per occurrence, ordered by
// start then UID.
func Expand(events []VEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand range end is before start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]VEvent)
	overrides := make(map[string][]VEvent)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			bases[ev.UID] = append(bases[ev.UID], ev)
		}
	}

	var occs []occurrence
	for _, uid := range slices.Sorted(maps.Keys(bases)) {
		for _, ev := range bases[uid] {
			got, capped := expandOne(ev, overrides[uid], cfg)
			occs = append(occs, got...)
			if capped {
				result.Truncated = append(result.Truncated, uid)
				appLog.Warn("ics: recurrence truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}

	slices.SortStableFunc(occs, func(a, b occurrence) int {
		if c := a.start.Compare(b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.uid, b.uid)
	})

	for _, o := range occs {
		if o.ev.AllDay && !cfg.IncludeAllDay {
			result.SkippedAllDay++
			continue
		}
		result.Events = append(result.Events, model.RawEvent{
			SourceID:    o.ev.SourceID,
			Label:       o.ev.Summary,
			Start:       model.At(o.start.In(cfg.Location)),
			End:         model.At(o.end.In(cfg.Location)),
			Description: o.ev.Description,
		})
	}
	return result, nil
}

func expandOne(ev VEvent, overrides []VEvent, cfg ExpandConfig) ([]occurrence, bool) {
	if ev.RRule == "" {
		o := applyOverride(ev, overrides, ev.Start, ev.End)
		if !overlaps(o.start, o.end, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []occurrence{o}, false
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so occurrences that start
	// before the range but run into it are kept.
	dur := ev.End.Sub(ev.Start)
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())

	// Iterate lazily; the cap bounds the walk.
	var starts []time.Time
	capped := false
	next := set.Iterator()
	for {
		s, ok := next()
		if !ok || s.After(to) {
			break
		}
		if s.Before(from) {
			continue
		}
		if len(starts) == cfg.MaxOccurrencesPerEvent {
			capped = true
			break
		}
		starts = append(starts, s)
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		var e time.Time
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, 1)
		} else {
			e = s.Add(dur)
		}
		o := applyOverride(ev, overrides, s, e)
		if !overlaps(o.start, o.end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, o)
	}
	return out, capped
}

// applyOverride swaps in an override whose RECURRENCE-ID equals start.
func applyOverride(base VEvent, overrides []VEvent, start, end time.Time) occurrence {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return occurrence{uid: base.UID, ev: ov, start: ov.Start, end: ov.End}
		}
	}
	return occurrence{uid: base.UID, ev: base, start: start, end: end}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
