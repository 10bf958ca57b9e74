package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "timeaudit/internal/log"
)

// VEvent is the subset of an iCalendar VEVENT the audit needs. Recurrence
// data is kept raw; Expand turns it into concrete occurrences.
type VEvent struct {
	SourceID string
	UID      string

	Summary     string
	Description string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time // set on overrides of a recurring instance
}

// Parse decodes an ICS payload. Floating times (no TZID, no Z suffix) are
// placed in loc. A VEVENT that cannot be decoded is logged and skipped.
func Parse(sourceID string, body []byte, loc *time.Location) ([]VEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", sourceID, err)
	}

	var out []VEvent
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(sourceID, comp, loc)
		if err != nil {
			appLog.Warn("ics: skipping vevent", "source", sourceID, "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}

	appLog.Debug("ics parse completed", "source", sourceID, "event_count", len(out))
	return out, nil
}

func parseVEvent(sourceID string, ve *ical.VEvent, loc *time.Location) (VEvent, error) {
	out := VEvent{SourceID: sourceID}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(unescapeText(p.Value))
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.UID)
	}
	out.AllDay = isDateValue(dtStart)

	start, err := propertyTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, err := propertyTime(dtEnd, loc)
		if err != nil {
			return out, fmt.Errorf("uid %s: DTEND: %w", out.UID, err)
		}
		out.End = end
	} else if out.AllDay {
		out.End = out.Start.AddDate(0, 0, 1)
	} else {
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for part := range strings.SplitSeq(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part, tzid(p.ICalParameters), loc)
			if err != nil {
				appLog.Debug("ics: ignoring EXDATE", "uid", out.UID, "value", part)
				continue
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		t, err := propertyTime(rid, loc)
		if err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// unescapeText reverses RFC 5545 TEXT escaping (\n, \,, \; and \\).
func unescapeText(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return textUnescaper.Replace(v)
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func tzid(params map[string][]string) string {
	if vs, ok := params["TZID"]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func propertyTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, tzid(p.ICalParameters), loc)
}

// parseICSTime handles the three RFC 5545 forms: UTC date-time (trailing Z),
// local date-time (TZID or floating) and date.
func parseICSTime(v, tz string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			appLog.Debug("ics: unknown TZID, using default zone", "tzid", tz)
		}
	}

	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
