// Package org renders calendar occurrences as org-mode outline entries.
package org

import (
	"fmt"
	"strings"
	"time"

	"ical2org/internal/model"
)

// RecurringTag is appended to the heading of occurrences generated from a
// recurrence rule.
const RecurringTag = "\t:RECURRING:"

// OrgDatetime renders a timezone-aware instant as an org timestamp,
// <YYYY-MM-DD Dow HH:MM>, converted into loc.
func OrgDatetime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("<2006-01-02 Mon 15:04>")
}

// OrgDate renders the calendar date of t as <YYYY-MM-DD Dow>. When loc is
// non-nil, t is first converted into loc; pass nil for plain calendar dates
// that carry no zone of their own.
func OrgDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("<2006-01-02 Mon>")
}

// FormatEntry renders one occurrence as an org entry: a level-1 heading,
// an optional timestamp line, an optional description block, and a blank
// separator line. Pure; loc only affects how instants are displayed.
//
// The returned error marks an occurrence that violates the expander
// contract (end before start); callers decide whether that aborts the run.
func FormatEntry(occ model.Occurrence, loc *time.Location) (string, error) {
	var b strings.Builder

	// Heading: summary [- location], or a placeholder when both are
	// missing/empty. Escape sequences are decoded per field; values that
	// arrive already decoded pass through unchanged.
	summary := unescapeCommas(occ.Summary.OrElse(""))
	location := unescapeCommas(occ.Location.OrElse(""))

	title := summary
	if summary == "" && location == "" {
		title = "(No title)"
	} else if location != "" {
		title += " - " + location
	}

	b.WriteString("* ")
	b.WriteString(title)
	if occ.IsRecurring {
		b.WriteString(RecurringTag)
	}
	b.WriteByte('\n')

	if err := writeTimestamp(&b, occ, loc); err != nil {
		return "", err
	}

	// A present-but-empty description still yields its (empty) block.
	if desc, ok := occ.Description.Get(); ok {
		b.WriteString(unescapeText(desc))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	return b.String(), nil
}

// writeTimestamp emits the timestamp line, if the occurrence has an
// interval to show.
//
//   - Timed occurrences render a <start>--<end> range in loc.
//   - A single-day all-day occurrence renders just its date; multi-day
//     ones render a date range with the exclusive end pulled back one day.
//   - No start, or no derivable end: no line.
func writeTimestamp(b *strings.Builder, occ model.Occurrence, loc *time.Location) error {
	start, ok := occ.Start.Get()
	if !ok {
		return nil
	}
	end, ok := occ.End.Get()
	if !ok {
		return nil
	}
	if end.Before(start) {
		return fmt.Errorf("occurrence %q: end %s precedes start %s",
			occ.UID, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	if !occ.AllDay {
		b.WriteString("  ")
		b.WriteString(OrgDatetime(start, loc))
		b.WriteString("--")
		b.WriteString(OrgDatetime(end, loc))
		b.WriteByte('\n')
		return nil
	}

	// All-day dates are zone-less; AddDate keeps the arithmetic on the
	// calendar, so DST in the display zone cannot shift a date.
	if start.AddDate(0, 0, 1).Equal(end) {
		b.WriteString("  ")
		b.WriteString(OrgDate(start, nil))
		b.WriteByte('\n')
		return nil
	}
	b.WriteString("  ")
	b.WriteString(OrgDate(start, nil))
	b.WriteString("--")
	b.WriteString(OrgDate(end.AddDate(0, 0, -1), nil))
	b.WriteByte('\n')
	return nil
}

func unescapeCommas(s string) string {
	return strings.ReplaceAll(s, `\,`, ",")
}

// unescapeText turns literal \n sequences into real line breaks, then
// unescapes commas, matching the source format's text escaping.
func unescapeText(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	return strings.ReplaceAll(s, `\,`, ",")
}
