package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	appLog "ical2org/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT as produced by
// the ICS parser. Recurrence expansion operates on this type.
//
// Text fields are decoded per RFC 5545: the underlying library already
// unescapes backslash-comma and backslash-n sequences in property values,
// so Summary/Location/Description hold plain text. The org formatter still
// normalizes any escape sequences that reach it, for occurrences built
// from sources that do not decode.
type ParsedEvent struct {
	UID string
	Raw string // serialized VEVENT, for diagnostics

	Summary     mo.Option[string]
	Location    mo.Option[string]
	Description mo.Option[string]

	// Start/End are instants for timed events. For all-day events they
	// are plain calendar dates held as UTC midnights, End exclusive.
	Start  mo.Option[time.Time]
	End    mo.Option[time.Time]
	AllDay bool

	// Duration is the DURATION property, only consulted when End is
	// absent; the expander derives End = Start + Duration from it.
	Duration mo.Option[time.Duration]

	RawRRule     string
	ExDates      []time.Time
	RecurrenceID mo.Option[time.Time] // RECURRENCE-ID of an override instance
	IsOverride   bool
}

// ParseCalendar parses a single ICS payload into a list of ParsedEvent.
//
//   - It relies on the underlying library's TZID handling to construct
//     proper time.Time values (with Location set) for timed events.
//   - It detects all-day events by inspecting the DTSTART value format and
//     keeps their dates zone-less (UTC midnights).
//   - It records RRULE/EXDATE/RECURRENCE-ID but does not expand
//     recurrences; expansion is done in internal/ics/expand.go.
//
// A malformed document is an error. A malformed individual VEVENT is
// logged and skipped so one broken entry cannot sink the whole calendar.
func ParseCalendar(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "uid", ev.UID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

// serializeConfig renders diagnostic copies of VEVENTs with standard RFC
// 5545 folding.
var serializeConfig = &ical.SerializationConfiguration{
	MaxLength:         75,
	PropertyMaxLength: 75,
	NewLine:           "\r\n",
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Raw = strings.TrimSpace(ve.Serialize(serializeConfig))

	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil {
		out.UID = uidProp.Value
	}

	// Summary / Description / Location: absence is meaningful, so only a
	// present property produces a value, even an empty one. Values arrive
	// already unescaped by the library.
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = mo.Some(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = mo.Some(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = mo.Some(p.Value)
	}

	// Detect all-day from DTSTART: VALUE=DATE or a value without a time
	// component.
	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp != nil {
		out.AllDay = isDateValue(dtStartProp)
	}

	if dtStartProp != nil {
		t, err := propTime(ve, dtStartProp, out.AllDay, veGetStart)
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.Start = mo.Some(t)
	}

	if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
		t, err := propTime(ve, dtEndProp, out.AllDay, veGetEnd)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = mo.Some(t)
	} else if durProp := ve.GetProperty(ical.ComponentProperty(ical.PropertyDuration)); durProp != nil {
		d, err := parseICSDuration(durProp.Value)
		if err != nil {
			return out, fmt.Errorf("DURATION: %w", err)
		}
		out.Duration = mo.Some(d)
	}

	// RRULE is kept raw; expansion parses it.
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID marks this VEVENT as an override for one instance of
	// a recurring series with the same UID.
	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value); err == nil {
			out.RecurrenceID = mo.Some(t)
			out.IsOverride = true
		}
	}

	return out, nil
}

// isDateValue reports whether a DTSTART/DTEND property holds a plain
// calendar date (VALUE=DATE, or no time component in the value).
func isDateValue(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

func veGetStart(ve *ical.VEvent) (time.Time, error) { return ve.GetStartAt() }
func veGetEnd(ve *ical.VEvent) (time.Time, error)   { return ve.GetEndAt() }

// propTime extracts the time value of a DTSTART/DTEND property. All-day
// dates are parsed directly into UTC midnights so no host-local zone leaks
// into calendar-date arithmetic; timed values go through the library helper
// which understands TZID parameters.
func propTime(ve *ical.VEvent, p *ical.IANAProperty, allDay bool, get func(*ical.VEvent) (time.Time, error)) (time.Time, error) {
	if allDay {
		return time.Parse(icsDateLayout, strings.TrimSpace(p.Value))
	}
	t, err := get(ve)
	if err != nil {
		// The library helper rejects a few uncommon layouts; fall back
		// to the basic forms.
		return parseICSTime(p.Value)
	}
	return t, nil
}

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405"
	icsUTCLayout      = "20060102T150405Z"
)

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// Used for EXDATE/RECURRENCE-ID values where full parameter context is not
// needed; the expander aligns locations before comparing.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse(icsUTCLayout, v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(icsDateTimeLayout, v, time.Local)
	}
	return time.Parse(icsDateLayout, v)
}

// parseICSDuration parses an RFC 5545 DURATION value such as "PT1H30M",
// "P2D", "P1W" or "-PT15M". Neither the ical nor the rrule library exposes
// a parser for these.
func parseICSDuration(v string) (time.Duration, error) {
	s := strings.TrimSpace(v)
	orig := s

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("malformed duration %q", orig)
	}
	s = s[1:]

	var d time.Duration
	inTime := false
	num := 0
	haveNum := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num = num*10 + int(c-'0')
			haveNum = true
		case c == 'T':
			if haveNum {
				return 0, fmt.Errorf("malformed duration %q", orig)
			}
			inTime = true
		default:
			if !haveNum {
				return 0, fmt.Errorf("malformed duration %q", orig)
			}
			unit, err := durationUnit(c, inTime)
			if err != nil {
				return 0, fmt.Errorf("malformed duration %q: %w", orig, err)
			}
			d += time.Duration(num) * unit
			num = 0
			haveNum = false
		}
	}
	if haveNum {
		return 0, fmt.Errorf("malformed duration %q", orig)
	}

	if neg {
		d = -d
	}
	return d, nil
}

func durationUnit(c byte, inTime bool) (time.Duration, error) {
	if inTime {
		switch c {
		case 'H':
			return time.Hour, nil
		case 'M':
			return time.Minute, nil
		case 'S':
			return time.Second, nil
		}
		return 0, fmt.Errorf("unknown time unit %q", string(c))
	}
	switch c {
	case 'W':
		return 7 * 24 * time.Hour, nil
	case 'D':
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown date unit %q", string(c))
}
