package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "uoacal/internal/log"
	"uoacal/internal/model"
)

const (
	// ContentType is the MIME type of an exported calendar.
	ContentType = "text/calendar"
	// DefaultFilename is the file name offered for an export.
	DefaultFilename = "uoa_courses.ics"

	// TZID names the timezone of every DTSTART/DTEND; its rules are the
	// VTIMEZONE component written before the events.
	TZID      = "Pacific/Auckland"
	ProductID = "-//UOA Course Exporter//EN"

	crlf = "\r\n"
)

// observance is one STANDARD or DAYLIGHT rule of the VTIMEZONE component.
type observance struct {
	offsetFrom, offsetTo string
	name                 string
	start                string
	rule                 string
}

var (
	nzDaylight = observance{"+1200", "+1300", "NZDT", "19700927T020000", "FREQ=YEARLY;BYMONTH=9;BYDAY=-1SU"}
	nzStandard = observance{"+1300", "+1200", "NZST", "19700405T030000", "FREQ=YEARLY;BYMONTH=4;BYDAY=1SU"}
)

func (o observance) applyTo(c *ical.ComponentBase) {
	c.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), o.offsetFrom)
	c.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), o.offsetTo)
	c.SetProperty(ical.ComponentProperty(ical.PropertyTzname), o.name)
	c.SetProperty(ical.ComponentProperty(ical.PropertyDtstart), o.start)
	c.SetProperty(ical.ComponentProperty(ical.PropertyRrule), o.rule)
}

// Encoder serializes courses as weekly recurring events.
//
// Every event is anchored to the current week: its first occurrence is the
// course weekday of the week containing "today" (Monday-first), which may
// lie in the past. The weekly RRULE produces the rest of the term.
type Encoder struct {
	// Now returns the export time. If nil, time.Now is used.
	Now func() time.Time

	// Location is the wall clock used to decide "today". If nil,
	// time.Local is used.
	Location *time.Location
}

// Encode returns the calendar document for courses.
func (e Encoder) Encode(courses []model.Course) string {
	var b strings.Builder
	// strings.Builder never fails.
	_ = e.Write(&b, courses)
	return b.String()
}

// Write serializes the calendar for courses to w with CRLF line endings.
// Courses whose time cannot be parsed are skipped.
func (e Encoder) Write(w io.Writer, courses []model.Course) error {
	if err := e.Calendar(courses).SerializeTo(w, ical.WithNewLine(crlf)); err != nil {
		return fmt.Errorf("ics: write calendar: %w", err)
	}
	return nil
}

// Calendar builds the calendar for courses. The index in each event UID is
// the course's position in courses.
func (e Encoder) Calendar(courses []model.Course) *ical.Calendar {
	now := e.now()

	cal := ical.NewCalendarFor("uoacal")
	cal.SetVersion("2.0")
	cal.SetProductId(ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	addTimezone(cal)

	skipped := 0
	for i, c := range courses {
		if !addEvent(cal, i, c, now) {
			skipped++
		}
	}

	if skipped > 0 {
		appLog.Debug("ics export skipped courses with unparsable time", "skipped", skipped)
	}
	return cal
}

func (e Encoder) now() time.Time {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc)
}

func addTimezone(cal *ical.Calendar) {
	tz := cal.AddTimezone(TZID)
	tz.SetProperty(ical.ComponentProperty(ical.PropertyTzurl), "http://tzurl.org/zoneinfo-outlook/"+TZID)
	tz.SetProperty(ical.ComponentProperty("X-LIC-LOCATION"), TZID)

	daylight := &ical.Daylight{}
	nzDaylight.applyTo(&daylight.ComponentBase)
	tz.Components = append(tz.Components, daylight)

	nzStandard.applyTo(&tz.AddStandard().ComponentBase)
}

// addEvent appends the VEVENT of one course and reports whether its time
// could be parsed.
func addEvent(cal *ical.Calendar, index int, c model.Course, now time.Time) bool {
	tr, ok := ParseTimeRange(c.Time)
	if !ok {
		return false
	}
	day := AnchorDate(now, c.Weekday)

	ev := cal.AddEvent(fmt.Sprintf("uoa-course-%d-%d@uoa-exporter", index, now.UnixMilli()))
	ev.SetDtStampTime(now)
	ev.SetCreatedTime(now)
	ev.SetProperty(ical.ComponentPropertyDtStart, formatLocal(day, tr.StartHour, tr.StartMinute), ical.WithTZID(TZID))
	ev.SetProperty(ical.ComponentPropertyDtEnd, formatLocal(day, tr.EndHour, tr.EndMinute), ical.WithTZID(TZID))
	ev.SetProperty(ical.ComponentPropertyRrule, "FREQ=WEEKLY;BYDAY="+string(c.Weekday))
	ev.SetSummary(c.Code)
	ev.SetDescription("Room: " + c.Room + "\nBuilding: " + c.Building)
	ev.SetLocation(c.Building + " " + c.Room)
	return true
}

// AnchorDate returns the date of weekday day in the Monday-first week that
// contains today. Unknown weekdays resolve to the Sunday before that week.
func AnchorDate(today time.Time, day model.Weekday) time.Time {
	todayISO := int(today.Weekday())
	if todayISO == 0 {
		todayISO = 7
	}
	return today.AddDate(0, 0, day.ISO()-todayISO)
}

// formatLocal renders the given wall-clock time on date's day as a floating
// DATE-TIME, e.g. 20250303T140000.
func formatLocal(date time.Time, hour, minute int) string {
	return fmt.Sprintf("%04d%02d%02dT%02d%02d00", date.Year(), int(date.Month()), date.Day(), hour, minute)
}
