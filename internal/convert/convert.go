// Package convert drives a single ICS-to-org conversion run.
package convert

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"ical2org/internal/ics"
	appLog "ical2org/internal/log"
	"ical2org/internal/model"
	"ical2org/internal/org"
)

// ParseError marks a malformed input document. It always aborts the whole
// run before anything is written.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "ERROR parsing ical file: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures one conversion run.
type Options struct {
	// Days is the half-width of the time window around now. Must be >= 0.
	Days int

	// Location is the display timezone for rendered instants. Defaults
	// to the host's local timezone.
	Location *time.Location

	// ContinueOnError makes a per-occurrence formatting failure a logged
	// diagnostic instead of an abort.
	ContinueOnError bool

	// MaxPerEvent caps occurrences per recurring series (0 = default).
	MaxPerEvent int

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Convert reads an iCalendar document from r, expands every occurrence
// within [now-Days, now+Days], and writes one org entry per occurrence to
// w, in expansion order.
//
// A malformed document returns a *ParseError with nothing written. A
// failing occurrence is reported to the diagnostic log together with its
// raw VEVENT; with ContinueOnError the run proceeds, otherwise it returns
// the failure immediately (blocks already written stay written).
func Convert(r io.Reader, w io.Writer, opts Options) error {
	if opts.Days < 0 {
		return fmt.Errorf("days must be non-negative, got %d", opts.Days)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	events, err := ics.ParseCalendar(body)
	if err != nil {
		return &ParseError{Err: err}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	nowUTC := now().UTC()

	cfg := ics.ExpandConfig{
		RangeStart:  nowUTC.AddDate(0, 0, -opts.Days),
		RangeEnd:    nowUTC.AddDate(0, 0, opts.Days),
		MaxPerEvent: opts.MaxPerEvent,
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	count := 0
	for occ := range ics.Expand(events, cfg) {
		block, ferr := formatOccurrence(occ, loc)
		if ferr != nil {
			appLog.Error("failed to format occurrence", ferr, "uid", occ.UID, "raw", occ.Raw)
			if opts.ContinueOnError {
				continue
			}
			return fmt.Errorf("format occurrence %q: %w", occ.UID, ferr)
		}
		if _, werr := io.WriteString(w, block); werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
		count++
	}

	appLog.Debug("conversion completed", "entries", count)
	return nil
}

// formatOccurrence shields the run from a panicking formatter so that one
// pathological occurrence is handled by the same continue/abort policy as
// an ordinary formatting error.
func formatOccurrence(occ model.Occurrence, loc *time.Location) (block string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while formatting occurrence: %v\n%s", r, debug.Stack())
		}
	}()
	return org.FormatEntry(occ, loc)
}
