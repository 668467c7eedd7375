package ics

import (
	"regexp"
	"strconv"
	"strings"
)

// timeRangeRe matches "H:MM(AM|PM) - H:MM(AM|PM)" anywhere in the text.
var timeRangeRe = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(AM|PM)\s*-\s*(\d{1,2}):(\d{2})(AM|PM)`)

// TimeRange is a start/end pair of 24-hour wall-clock times.
type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// ParseTimeRange converts a 12-hour timetable range such as
// "10:00AM - 11:50AM" into 24-hour hours and minutes.
func ParseTimeRange(s string) (TimeRange, bool) {
	m := timeRangeRe.FindStringSubmatch(s)
	if m == nil {
		return TimeRange{}, false
	}

	sh, _ := strconv.Atoi(m[1])
	sm, _ := strconv.Atoi(m[2])
	eh, _ := strconv.Atoi(m[4])
	em, _ := strconv.Atoi(m[5])

	return TimeRange{
		StartHour:   to24Hour(sh, m[3]),
		StartMinute: sm,
		EndHour:     to24Hour(eh, m[6]),
		EndMinute:   em,
	}, true
}

// to24Hour applies the 12-hour clock rules: 12AM is 0, 12PM stays 12 and
// other PM hours gain 12.
func to24Hour(hour int, meridiem string) int {
	pm := strings.EqualFold(meridiem, "PM")
	switch {
	case pm && hour != 12:
		return hour + 12
	case !pm && hour == 12:
		return 0
	default:
		return hour
	}
}
