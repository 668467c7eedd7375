// Package sheet writes extracted courses as an Excel workbook.
package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"uoacal/internal/model"
)

const (
	// ContentType is the MIME type of an xlsx workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// DefaultFilename is the file name offered for a workbook export.
	DefaultFilename = "uoa_courses.xlsx"

	sheetName = "Courses"
)

var header = []string{"Code", "Weekday", "Time", "Room", "Building"}

// Write writes one row per course, in the given order, below a header row.
func Write(w io.Writer, courses []model.Course) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("sheet: new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	// Drop the default Sheet1.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("sheet: delete default sheet: %w", err)
	}

	f.SetColWidth(sheetName, "A", "A", 16)
	f.SetColWidth(sheetName, "B", "B", 10)
	f.SetColWidth(sheetName, "C", "C", 20)
	f.SetColWidth(sheetName, "D", "E", 24)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("sheet: header: %w", err)
	}
	f.SetCellStyle(sheetName, "A1", "E1", headerStyle)

	for i, c := range courses {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{c.Code, string(c.Weekday), c.Time, c.Room, c.Building}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("sheet: row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("sheet: write workbook: %w", err)
	}
	return nil
}
