package ics

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uoacal/internal/model"
)

func auckland(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	return loc
}

// fixedEncoder exports as of Wednesday 5 March 2025, 10:15:30 NZDT.
func fixedEncoder(t *testing.T) Encoder {
	loc := auckland(t)
	now := time.Date(2025, time.March, 5, 10, 15, 30, 0, loc)
	return Encoder{
		Now:      func() time.Time { return now },
		Location: loc,
	}
}

var compsci = model.Course{
	Time:     "10:00AM - 11:00AM",
	Code:     "COMPSCI 101",
	Room:     "Rm 1",
	Building: "Building A",
	Weekday:  model.Monday,
}

var wantHeader = []string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//UOA Course Exporter//EN",
	"CALSCALE:GREGORIAN",
	"METHOD:PUBLISH",
	"BEGIN:VTIMEZONE",
	"TZID:Pacific/Auckland",
	"TZURL:http://tzurl.org/zoneinfo-outlook/Pacific/Auckland",
	"X-LIC-LOCATION:Pacific/Auckland",
	"BEGIN:DAYLIGHT",
	"TZOFFSETFROM:+1200",
	"TZOFFSETTO:+1300",
	"TZNAME:NZDT",
	"DTSTART:19700927T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=9;BYDAY=-1SU",
	"END:DAYLIGHT",
	"BEGIN:STANDARD",
	"TZOFFSETFROM:+1300",
	"TZOFFSETTO:+1200",
	"TZNAME:NZST",
	"DTSTART:19700405T030000",
	"RRULE:FREQ=YEARLY;BYMONTH=4;BYDAY=1SU",
	"END:STANDARD",
	"END:VTIMEZONE",
}

func lines(doc string) []string {
	return strings.Split(strings.TrimSuffix(doc, "\r\n"), "\r\n")
}

func TestEncode_SingleCourse(t *testing.T) {
	enc := fixedEncoder(t)
	doc := enc.Encode([]model.Course{compsci})

	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(doc, "END:VCALENDAR\r\n"))
	assert.Equal(t, 1, strings.Count(doc, "RRULE:FREQ=WEEKLY;BYDAY=MO"))
	assert.Equal(t, 1, strings.Count(doc, "BEGIN:VEVENT"))

	ms := enc.Now().UnixMilli()
	want := []string{
		"BEGIN:VEVENT",
		"UID:uoa-course-0-" + strconv.FormatInt(ms, 10) + "@uoa-exporter",
		"DTSTAMP:20250304T211530Z",
		"CREATED:20250304T211530Z",
		"DTSTART;TZID=Pacific/Auckland:20250303T100000",
		"DTEND;TZID=Pacific/Auckland:20250303T110000",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"SUMMARY:COMPSCI 101",
		`DESCRIPTION:Room: Rm 1\nBuilding: Building A`,
		"LOCATION:Building A Rm 1",
		"END:VEVENT",
	}
	got := lines(doc)
	require.Len(t, got, len(wantHeader)+len(want)+1)
	assert.Equal(t, wantHeader, got[:len(wantHeader)])
	assert.Equal(t, want, got[len(wantHeader):len(wantHeader)+len(want)])
	assert.Equal(t, "END:VCALENDAR", got[len(got)-1])
}

func TestEncode_Empty(t *testing.T) {
	doc := fixedEncoder(t).Encode(nil)

	assert.NotContains(t, doc, "VEVENT")
	assert.Equal(t, append(append([]string{}, wantHeader...), "END:VCALENDAR"), lines(doc))
}

func TestEncode_TimezoneBlock(t *testing.T) {
	doc := fixedEncoder(t).Encode(nil)

	for _, l := range []string{
		"TZID:Pacific/Auckland",
		"BEGIN:DAYLIGHT",
		"TZNAME:NZDT",
		"RRULE:FREQ=YEARLY;BYMONTH=9;BYDAY=-1SU",
		"BEGIN:STANDARD",
		"TZNAME:NZST",
		"RRULE:FREQ=YEARLY;BYMONTH=4;BYDAY=1SU",
		"END:VTIMEZONE",
	} {
		assert.Contains(t, doc, l+"\r\n")
	}
}

func TestEncode_SkipsUnparsableTime(t *testing.T) {
	enc := fixedEncoder(t)
	tba := compsci
	tba.Time = "TBA"
	tba.Code = "ENGGEN 199"

	doc := enc.Encode([]model.Course{tba, compsci})

	assert.Equal(t, 1, strings.Count(doc, "BEGIN:VEVENT"))
	assert.NotContains(t, doc, "ENGGEN 199")
	// The index in the UID is the position in the input list.
	assert.Contains(t, doc, "UID:uoa-course-1-")
}

func TestEncode_AfternoonAndEscaping(t *testing.T) {
	c := model.Course{
		Time:     "12:00PM - 1:50PM",
		Code:     "MATHS 108",
		Room:     "Rm 2; Lab",
		Building: "Owen G, Glenn",
		Weekday:  model.Friday,
	}

	doc := fixedEncoder(t).Encode([]model.Course{c})

	assert.Contains(t, doc, "DTSTART;TZID=Pacific/Auckland:20250307T120000\r\n")
	assert.Contains(t, doc, "DTEND;TZID=Pacific/Auckland:20250307T135000\r\n")
	assert.Contains(t, doc, `DESCRIPTION:Room: Rm 2\; Lab\nBuilding: Owen G\, Glenn`+"\r\n")
	assert.Contains(t, doc, `LOCATION:Owen G\, Glenn Rm 2\; Lab`+"\r\n")
}

func TestAnchorDate(t *testing.T) {
	loc := auckland(t)
	wednesday := time.Date(2025, time.March, 5, 9, 0, 0, 0, loc)
	sunday := time.Date(2025, time.March, 9, 9, 0, 0, 0, loc)

	tests := []struct {
		name  string
		today time.Time
		day   model.Weekday
		want  string
	}{
		{"monday from wednesday", wednesday, model.Monday, "2025-03-03"},
		{"same day", wednesday, model.Wednesday, "2025-03-05"},
		{"sunday from wednesday", wednesday, model.Sunday, "2025-03-09"},
		{"monday from sunday", sunday, model.Monday, "2025-03-03"},
		{"sunday from sunday", sunday, model.Sunday, "2025-03-09"},
		{"unknown", wednesday, model.Unknown, "2025-03-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnchorDate(tt.today, tt.day).Format("2006-01-02"))
		})
	}
}

// unfold joins folded continuation lines.
func unfold(doc string) string {
	return strings.ReplaceAll(doc, "\r\n ", "")
}

func TestEncode_FoldsLongLines(t *testing.T) {
	c := compsci
	c.Building = strings.Repeat("Kōrero ", 20) + "Building"

	doc := fixedEncoder(t).Encode([]model.Course{c})

	for _, l := range strings.Split(doc, "\r\n") {
		assert.LessOrEqual(t, len(l), 75, "line %q", l)
	}
	assert.Contains(t, unfold(doc), "\r\nLOCATION:"+c.Building+" Rm 1\r\n")
}

func TestEncode_KeepsInvalidUTF8BytesRegardlessOfLength(t *testing.T) {
	short := compsci
	short.Room = "Rm \xff"
	long := compsci
	long.Code = "PHYSICS 120"
	long.Room = strings.Repeat("x", 80) + "\xff"

	doc := unfold(fixedEncoder(t).Encode([]model.Course{short, long}))

	assert.NotContains(t, doc, "\uFFFD")
	assert.Contains(t, doc, "LOCATION:Building A Rm \xff\r\n")
	assert.Contains(t, doc, "LOCATION:Building A "+long.Room+"\r\n")
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestWrite_ReturnsWriterError(t *testing.T) {
	err := fixedEncoder(t).Write(failingWriter{}, []model.Course{compsci})

	assert.ErrorIs(t, err, errDiskFull)
}
