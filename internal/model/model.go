package model

import "time"

// Weekday is a two-letter iCalendar weekday code (RFC 5545 BYDAY values).
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"

	// Unknown is assigned when a timetable column cannot be mapped to a day.
	Unknown Weekday = "Unknown"
)

// Weekdays is the Monday-first column order of the timetable grid.
var Weekdays = [...]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayAt returns the weekday for a zero-based, Monday-first column index.
// Indices outside the week (negative included) yield Unknown.
func WeekdayAt(i int) Weekday {
	if i < 0 || i >= len(Weekdays) {
		return Unknown
	}
	return Weekdays[i]
}

// ISO returns the ISO-8601 day number (Monday=1 … Sunday=7), or 0 for
// Unknown and any unrecognised code.
func (d Weekday) ISO() int {
	for i, w := range Weekdays {
		if w == d {
			return i + 1
		}
	}
	return 0
}

// Course is one weekly recurring class meeting extracted from the timetable.
// Values are produced once by the extractor and only read afterwards.
type Course struct {
	Time     string  `json:"time"`     // raw range, e.g. "10:00AM - 11:00AM"
	Code     string  `json:"code"`     // whitespace-normalized course code
	Room     string  `json:"room"`     // room identifier
	Building string  `json:"building"` // building identifier
	Weekday  Weekday `json:"weekday"`

	// RawText is the tag-stripped text of the cell link, kept for diagnostics.
	RawText string `json:"raw_text"`
}

// CourseKey is the identity of a Course for de-duplication.
type CourseKey struct {
	Code     string
	Time     string
	Room     string
	Building string
	Weekday  Weekday
}

// Key returns the identity key of c.
func (c Course) Key() CourseKey {
	return CourseKey{
		Code:     c.Code,
		Time:     c.Time,
		Room:     c.Room,
		Building: c.Building,
		Weekday:  c.Weekday,
	}
}

// Less orders courses by code, then by the raw time string.
func Less(a, b Course) bool {
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.Time < b.Time
}

// Meeting represents a single concrete instance of a course in time, after
// recurrence expansion of an exported calendar.
type Meeting struct {
	UID string

	Summary     string
	Description string
	Location    string

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
