package ics

import (
	"errors"
	"iter"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	appLog "ical2org/internal/log"
	"ical2org/internal/model"
)

const defaultMaxPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window. Occurrences
	// whose effective interval intersects the window are produced.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxPerEvent is a safety cap against runaway recurrence rules. If
	// zero, defaultMaxPerEvent is used.
	MaxPerEvent int
}

// Expand turns parsed events into concrete occurrences within the window.
// It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics (exclusive end dates)
//
// The result is a lazy, pull-based sequence consumed once; per-series rule
// hits are the only batch materialized, bounded by the window and the cap.
// Occurrences keep their source zones; rendering into a display timezone is
// the formatter's concern. Events are produced in input order.
func Expand(events []ParsedEvent, cfg ExpandConfig) iter.Seq[model.Occurrence] {
	if cfg.MaxPerEvent <= 0 {
		cfg.MaxPerEvent = defaultMaxPerEvent
	}

	// Overrides are looked up by UID while walking the base events.
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	return func(yield func(model.Occurrence) bool) {
		if cfg.RangeEnd.Before(cfg.RangeStart) {
			return
		}
		for _, ev := range events {
			if ev.IsOverride {
				continue
			}
			if !expandEvent(ev, overridesByUID[ev.UID], cfg, yield) {
				return
			}
		}
	}
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig, yield func(model.Occurrence) bool) bool {
	start, ok := ev.Start.Get()
	if !ok {
		// Without DTSTART the event cannot be placed in the window.
		appLog.Debug("expand: skipping event without DTSTART", "uid", ev.UID)
		return true
	}

	if ev.RawRRule == "" {
		return expandSingleEvent(ev, start, overrides, cfg, yield)
	}
	return expandRecurringEvent(ev, start, overrides, cfg, yield)
}

func expandSingleEvent(ev ParsedEvent, start time.Time, overrides []ParsedEvent, cfg ExpandConfig, yield func(model.Occurrence) bool) bool {
	end := effectiveEnd(ev, start)

	// An event without a derivable end is treated as instantaneous for
	// the window test.
	probe := start
	if e, ok := end.Get(); ok {
		probe = e
	}
	if !timeRangesOverlap(start, probe, cfg.RangeStart, cfg.RangeEnd) {
		return true
	}

	if o, ok := findOverrideForStart(overrides, start); ok {
		ostart, has := o.Start.Get()
		if has {
			return yield(makeOccurrence(o, ostart, effectiveEnd(o, ostart), false))
		}
	}
	return yield(makeOccurrence(ev, start, end, false))
}

func expandRecurringEvent(ev ParsedEvent, seriesStart time.Time, overrides []ParsedEvent, cfg ExpandConfig, yield func(model.Occurrence) bool) bool {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return true
	}
	r.DTStart(seriesStart)

	var set rrule.Set
	set.RRule(r)

	// EXDATEs are aligned with the series start's location before they
	// can cancel instances.
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(seriesStart.Location()))
	}

	// Between operates in the series' own location.
	rangeStart := cfg.RangeStart.In(seriesStart.Location())
	rangeEnd := cfg.RangeEnd.In(seriesStart.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxPerEvent {
		occTimes = occTimes[:cfg.MaxPerEvent]
		appLog.Error("expand: truncated occurrences due to cap", errTruncated,
			"uid", ev.UID, "cap", cfg.MaxPerEvent)
	}

	// Duration carried from the series onto each instance.
	daySpan := seriesDaySpan(ev, seriesStart)
	timedDur, hasTimedDur := seriesDuration(ev, seriesStart)

	for _, occStart := range occTimes {
		instEv := ev
		instStart := occStart
		var instEnd mo.Option[time.Time]

		if ev.AllDay {
			instStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			instEnd = mo.Some(instStart.AddDate(0, 0, daySpan))
		} else if hasTimedDur {
			instEnd = mo.Some(occStart.Add(timedDur))
		}

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			if ostart, has := o.Start.Get(); has {
				instEv = o
				instStart = ostart
				instEnd = effectiveEnd(o, ostart)
			}
		}

		if !yield(makeOccurrence(instEv, instStart, instEnd, true)) {
			return false
		}
	}
	return true
}

var errTruncated = errors.New("max occurrences reached")

// effectiveEnd derives the end of an event: DTEND if present, else
// DTSTART+DURATION, else (for all-day events) the next calendar day, else
// absent.
func effectiveEnd(ev ParsedEvent, start time.Time) mo.Option[time.Time] {
	if end, ok := ev.End.Get(); ok {
		return mo.Some(end)
	}
	if d, ok := ev.Duration.Get(); ok {
		return mo.Some(start.Add(d))
	}
	if ev.AllDay {
		return mo.Some(start.AddDate(0, 0, 1))
	}
	return mo.None[time.Time]()
}

// seriesDaySpan is the whole-day length of an all-day series, at least 1.
func seriesDaySpan(ev ParsedEvent, start time.Time) int {
	if end, ok := ev.End.Get(); ok {
		if days := daysBetween(start, end); days > 0 {
			return days
		}
	}
	return 1
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// seriesDuration is the instant span of a timed series, if derivable.
func seriesDuration(ev ParsedEvent, start time.Time) (time.Duration, bool) {
	if end, ok := ev.End.Get(); ok {
		return end.Sub(start), true
	}
	if d, ok := ev.Duration.Get(); ok {
		return d, true
	}
	return 0, false
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches the
// given instance start with exact time equality, locations aligned.
func findOverrideForStart(overrides []ParsedEvent, instStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		rid, ok := ov.RecurrenceID.Get()
		if !ok {
			continue
		}
		if rid.In(instStart.Location()).Equal(instStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence builds the occurrence handed to the formatter. recurring
// records whether the parent series carries an RRULE; it survives onto
// overridden instances as well.
func makeOccurrence(ev ParsedEvent, start time.Time, end mo.Option[time.Time], recurring bool) model.Occurrence {
	return model.Occurrence{
		UID:         ev.UID,
		Raw:         ev.Raw,
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		AllDay:      ev.AllDay,
		Start:       mo.Some(start),
		End:         end,
		IsRecurring: recurring,
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
