// Package timetable recovers weekly course meetings from the student-portal
// timetable grid.
//
// The grid has one row per period and one column per weekday. A course
// occupying several periods is a single cell with a rowspan, so the rows it
// overlaps carry fewer cells and weekday membership has to be inferred from
// the cell count (see rowLayout).
package timetable

import (
	"fmt"
	"io"
	"sort"

	"github.com/PuerkitoBio/goquery"

	appLog "uoacal/internal/log"
	"uoacal/internal/model"
)

// Extract returns every course found in the timetable tables of doc,
// ordered by code then time. Duplicate courses within one table are
// reported once. The result is never nil.
func Extract(doc *goquery.Document) []model.Course {
	courses := make([]model.Course, 0)

	tables := doc.Find(TableSelector)
	tables.Each(func(_ int, table *goquery.Selection) {
		// Each table has its own identity set.
		seen := make(keySet)
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			courses = append(courses, walkRow(tr, seen)...)
		})
	})

	sort.SliceStable(courses, func(i, j int) bool {
		return model.Less(courses[i], courses[j])
	})

	appLog.Debug("timetable extracted", "tables", tables.Length(), "courses", len(courses))
	return courses
}

// ExtractHTML parses an HTML page and extracts its courses.
func ExtractHTML(r io.Reader) ([]model.Course, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("timetable: parse html: %w", err)
	}
	return Extract(doc), nil
}
