package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"uoacal/internal/model"
)

func TestWrite(t *testing.T) {
	courses := []model.Course{
		{Code: "COMPSCI 101", Weekday: model.Monday, Time: "10:00AM - 11:00AM", Room: "Rm 1", Building: "Building A"},
		{Code: "MATHS 108", Weekday: model.Friday, Time: "2:00PM - 3:00PM", Room: "Rm 2", Building: "Building B"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, courses))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Courses"}, f.GetSheetList())
	rows, err := f.GetRows("Courses")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Code", "Weekday", "Time", "Room", "Building"},
		{"COMPSCI 101", "MO", "10:00AM - 11:00AM", "Rm 1", "Building A"},
		{"MATHS 108", "FR", "2:00PM - 3:00PM", "Rm 2", "Building B"},
	}, rows)
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Courses")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
