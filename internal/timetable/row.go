package timetable

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"uoacal/internal/model"
)

// Markup markers of the student-portal weekly timetable.
const (
	TableSelector = "table.uoa_gridborder_cal"

	timeColumnMarker = "uoa_timecol_cal"
	courseCellMarker = "uoa_cal_ENRL_stat"
)

// ExpectedColumns is the number of weekday columns in a full row, not
// counting the time label column.
const ExpectedColumns = len(model.Weekdays)

// keySet records identity keys already emitted for one table.
type keySet map[model.CourseKey]struct{}

// add reports whether k was not yet present, and records it.
func (s keySet) add(k model.CourseKey) bool {
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// rowLayout is a timetable row reduced to its weekday cells.
//
// Cells of a course spanning several periods are only present in the row
// where the course starts, so later rows are short by the number of days
// still covered. Those days are assumed to be the leading (Monday-first)
// columns, and missing shifts the weekday index of every remaining cell.
type rowLayout struct {
	timeLabel string
	cells     []*goquery.Selection
	missing   int
}

func layoutRow(tr *goquery.Selection) rowLayout {
	var l rowLayout

	tr.ChildrenFiltered("td").Each(func(_ int, td *goquery.Selection) {
		if hasMarker(td, timeColumnMarker) {
			if l.timeLabel == "" {
				l.timeLabel = strings.TrimSpace(td.Find("span").First().Text())
			}
			return
		}
		l.cells = append(l.cells, td)
	})

	// More cells than weekdays gives a negative shift; it is kept as is.
	l.missing = ExpectedColumns - len(l.cells)
	return l
}

// weekday maps the zero-based position of a weekday cell in the row to its
// weekday, applying the missing-column shift.
func (l rowLayout) weekday(cursor int) model.Weekday {
	return model.WeekdayAt(cursor + l.missing)
}

// walkRow returns the courses of one row that are not yet in seen.
func walkRow(tr *goquery.Selection, seen keySet) []model.Course {
	l := layoutRow(tr)

	var out []model.Course
	for cursor, td := range l.cells {
		if !isCourseCell(td) {
			continue
		}
		c, ok := ParseCell(td, l.weekday(cursor))
		if !ok {
			continue
		}
		if seen.add(c.Key()) {
			out = append(out, c)
		}
	}
	return out
}

func isCourseCell(td *goquery.Selection) bool {
	return hasMarker(td, courseCellMarker)
}

// hasMarker reports whether marker occurs anywhere in the class attribute,
// not only as a whole class token.
func hasMarker(s *goquery.Selection, marker string) bool {
	class, _ := s.Attr("class")
	return strings.Contains(class, marker)
}
