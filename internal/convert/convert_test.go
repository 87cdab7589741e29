package convert

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildICS(lines ...string) string {
	all := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}
	all = append(all, lines...)
	all = append(all, "END:VCALENDAR", "")
	return strings.Join(all, "\r\n")
}

func fixedNow() time.Time {
	return time.Date(2020, 1, 10, 12, 0, 0, 0, time.UTC)
}

func TestConvertEndToEnd(t *testing.T) {
	input := buildICS(
		"BEGIN:VEVENT",
		"UID:oneoff",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:One-off",
		"DTSTART:20200106T090000Z",
		"DTEND:20200106T093000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:holiday",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:Holiday",
		"DTSTART;VALUE=DATE:20200115",
		"DTEND;VALUE=DATE:20200116",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weekly",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:Weekly",
		"DTSTART:20200101T080000Z",
		"DTEND:20200101T083000Z",
		"RRULE:FREQ=WEEKLY;COUNT=3",
		"END:VEVENT",
	)

	var out bytes.Buffer
	err := Convert(strings.NewReader(input), &out, Options{
		Days:     30,
		Location: time.UTC,
		Now:      fixedNow,
	})
	require.NoError(t, err)

	expected := "* One-off\n" +
		"  <2020-01-06 Mon 09:00>--<2020-01-06 Mon 09:30>\n" +
		"\n" +
		"* Holiday\n" +
		"  <2020-01-15 Wed>\n" +
		"\n" +
		"* Weekly\t:RECURRING:\n" +
		"  <2020-01-01 Wed 08:00>--<2020-01-01 Wed 08:30>\n" +
		"\n" +
		"* Weekly\t:RECURRING:\n" +
		"  <2020-01-08 Wed 08:00>--<2020-01-08 Wed 08:30>\n" +
		"\n" +
		"* Weekly\t:RECURRING:\n" +
		"  <2020-01-15 Wed 08:00>--<2020-01-15 Wed 08:30>\n" +
		"\n"
	assert.Equal(t, expected, out.String())
}

func TestConvertEscapedTextAndEmptyDescription(t *testing.T) {
	input := buildICS(
		"BEGIN:VEVENT",
		"UID:esc",
		"DTSTAMP:20200101T000000Z",
		`SUMMARY:Lunch\, then coffee`,
		`LOCATION:Cafe\, downtown`,
		`DESCRIPTION:Bring cash\, cards rejected\nSide room`,
		"DTSTART:20200106T120000Z",
		"DTEND:20200106T130000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:quiet",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:Quiet",
		"DESCRIPTION:",
		"DTSTART:20200107T090000Z",
		"DTEND:20200107T093000Z",
		"END:VEVENT",
	)

	var out bytes.Buffer
	err := Convert(strings.NewReader(input), &out, Options{
		Days:     30,
		Location: time.UTC,
		Now:      fixedNow,
	})
	require.NoError(t, err)

	expected := "* Lunch, then coffee - Cafe, downtown\n" +
		"  <2020-01-06 Mon 12:00>--<2020-01-06 Mon 13:00>\n" +
		"Bring cash, cards rejected\nSide room\n" +
		"\n" +
		"* Quiet\n" +
		"  <2020-01-07 Tue 09:00>--<2020-01-07 Tue 09:30>\n" +
		"\n" +
		"\n"
	assert.Equal(t, expected, out.String())
}

func TestConvertWindowExcludesFarEvents(t *testing.T) {
	input := buildICS(
		"BEGIN:VEVENT",
		"UID:far",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:Far away",
		"DTSTART:20210106T090000Z",
		"DTEND:20210106T093000Z",
		"END:VEVENT",
	)

	var out bytes.Buffer
	err := Convert(strings.NewReader(input), &out, Options{
		Days:     30,
		Location: time.UTC,
		Now:      fixedNow,
	})
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestConvertMalformedInput(t *testing.T) {
	var out bytes.Buffer
	err := Convert(strings.NewReader("this is not a calendar"), &out, Options{
		Days: 30,
		Now:  fixedNow,
	})
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "ERROR parsing ical file")
	// A parse failure writes nothing.
	assert.Empty(t, out.String())
}

func TestConvertNegativeDays(t *testing.T) {
	var out bytes.Buffer
	err := Convert(strings.NewReader(buildICS()), &out, Options{
		Days: -1,
		Now:  fixedNow,
	})
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

// brokenCalendar has a middle event whose DTEND precedes its DTSTART; the
// formatter rejects it and the continue-on-error policy decides the rest.
func brokenCalendar() string {
	return buildICS(
		"BEGIN:VEVENT",
		"UID:good1",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:First good",
		"DTSTART:20200106T090000Z",
		"DTEND:20200106T093000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:bad",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:Inverted",
		"DTSTART:20200108T100000Z",
		"DTEND:20200108T090000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:good2",
		"DTSTAMP:20200101T000000Z",
		"SUMMARY:Second good",
		"DTSTART:20200109T090000Z",
		"DTEND:20200109T093000Z",
		"END:VEVENT",
	)
}

func TestConvertContinueOnError(t *testing.T) {
	var out bytes.Buffer
	err := Convert(strings.NewReader(brokenCalendar()), &out, Options{
		Days:            30,
		Location:        time.UTC,
		Now:             fixedNow,
		ContinueOnError: true,
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "* First good")
	assert.Contains(t, got, "* Second good")
	assert.NotContains(t, got, "Inverted")
}

func TestConvertAbortOnError(t *testing.T) {
	var out bytes.Buffer
	err := Convert(strings.NewReader(brokenCalendar()), &out, Options{
		Days:     30,
		Location: time.UTC,
		Now:      fixedNow,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// Blocks written before the failure stay written; nothing after.
	got := out.String()
	assert.Contains(t, got, "* First good")
	assert.NotContains(t, got, "* Second good")
}
