package model

import (
	"time"

	"github.com/samber/mo"
)

// Occurrence represents a single concrete instance of a calendar event
// after recurrence expansion. It is the unit the org formatter consumes.
//
// AllDay selects which kind of start/end pair the occurrence carries:
// timed occurrences hold timezone-aware instants, all-day occurrences hold
// plain calendar dates stored as UTC midnights. The two kinds never mix
// within one occurrence. For all-day occurrences End is exclusive (the
// first day after the event), matching the iCalendar DTEND convention.
type Occurrence struct {
	UID string

	// Raw is the serialized source VEVENT, kept so a failing occurrence
	// can be reported verbatim. Never parsed again.
	Raw string

	// Summary, Location and Description hold decoded text; the ICS
	// parser unescapes backslash-comma and backslash-n sequences. The
	// formatter tolerates values that still carry those sequences and
	// unescapes them per field. Absence is distinct from an empty value.
	Summary     mo.Option[string]
	Location    mo.Option[string]
	Description mo.Option[string]

	AllDay bool

	Start mo.Option[time.Time]
	End   mo.Option[time.Time]

	// IsRecurring is true when the parent series carries an RRULE. It is
	// set on every expanded instance of that series, overridden instances
	// included.
	IsRecurring bool
}
