package timetable

import (
	"github.com/PuerkitoBio/goquery"

	"uoacal/internal/model"
)

const maxSamples = 3

// Report summarises how the extractor sees a page. It is used to diagnose
// pages where extraction finds fewer courses than expected.
type Report struct {
	TotalCells     int             `json:"total_cells"`
	Tables         int             `json:"tables"`
	Rows           int             `json:"rows"`
	CourseCells    int             `json:"course_cells"`
	CellsWithSpan  int             `json:"cells_with_span"`
	CellsWithLinks int             `json:"cells_with_links"`
	Weekdays       []model.Weekday `json:"weekdays"`
	TimeLabels     []string        `json:"time_labels"`
	Samples        []model.Course  `json:"samples"`
}

// Inspect walks the timetable tables of doc like Extract does and counts
// what it encounters.
func Inspect(doc *goquery.Document) Report {
	r := Report{
		TotalCells: doc.Find("td").Length(),
		Weekdays:   []model.Weekday{},
		TimeLabels: []string{},
		Samples:    []model.Course{},
	}
	seenDays := make(map[model.Weekday]bool)

	doc.Find(TableSelector).Each(func(_ int, table *goquery.Selection) {
		r.Tables++
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			r.Rows++
			l := layoutRow(tr)
			if l.timeLabel != "" {
				r.TimeLabels = append(r.TimeLabels, l.timeLabel)
			}

			for cursor, td := range l.cells {
				if !isCourseCell(td) {
					continue
				}
				r.CourseCells++
				if td.Find("span").Length() > 0 {
					r.CellsWithSpan++
				}
				if findLink(td) == nil {
					continue
				}
				r.CellsWithLinks++

				day := l.weekday(cursor)
				if !seenDays[day] {
					seenDays[day] = true
					r.Weekdays = append(r.Weekdays, day)
				}

				if len(r.Samples) < maxSamples {
					if c, ok := ParseCell(td, day); ok {
						r.Samples = append(r.Samples, c)
					}
				}
			}
		})
	})

	return r
}
