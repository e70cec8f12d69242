package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Detail"
)

// Exporter renders a monthly matrix as an xlsx workbook with a summary sheet
// (one row per user) and a detail sheet (one row per day, two columns per
// user, late check-ins flagged).
type Exporter struct{}

// NewExporter creates an exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Render writes the workbook for the matrix to w.
func (e *Exporter) Render(matrix MonthlyMatrix, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), summarySheet)
	if _, err := f.NewSheet(detailSheet); err != nil {
		return fmt.Errorf("create detail sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lateStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FF6B6B"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("late style: %w", err)
	}

	if err := e.renderSummary(f, matrix, headerStyle); err != nil {
		return err
	}
	if err := e.renderDetail(f, matrix, headerStyle, lateStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) renderSummary(f *excelize.File, matrix MonthlyMatrix, headerStyle int) error {
	title := fmt.Sprintf("ATTENDANCE %02d/%d", matrix.Month, matrix.Year)
	if err := f.SetCellValue(summarySheet, "A1", title); err != nil {
		return err
	}

	headers := []string{"#", "Name", "Days present", "Days late", "Late minutes"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 2)
		if err := f.SetCellValue(summarySheet, cell, h); err != nil {
			return err
		}
		_ = f.SetCellStyle(summarySheet, cell, cell, headerStyle)
	}

	for i, u := range matrix.Users {
		row := i + 3
		values := []any{i + 1, u.Name, u.DaysPresent, u.DaysLate, u.TotalLateMinutes}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(summarySheet, "B", "B", 28)
	_ = f.SetColWidth(summarySheet, "C", "E", 14)
	return nil
}

func (e *Exporter) renderDetail(f *excelize.File, matrix MonthlyMatrix, headerStyle, lateStyle int) error {
	// Row 1: user names each spanning their in/out column pair. Row 2: the
	// in/out labels. Rows 3..: one row per day of the month.
	if err := f.SetCellValue(detailSheet, "A2", "Day"); err != nil {
		return err
	}
	_ = f.SetCellStyle(detailSheet, "A2", "A2", headerStyle)

	for i, u := range matrix.Users {
		startCol := 2 + i*2
		nameCell, _ := excelize.CoordinatesToCellName(startCol, 1)
		endCell, _ := excelize.CoordinatesToCellName(startCol+1, 1)
		if err := f.SetCellValue(detailSheet, nameCell, u.Name); err != nil {
			return err
		}
		_ = f.MergeCell(detailSheet, nameCell, endCell)
		_ = f.SetCellStyle(detailSheet, nameCell, endCell, headerStyle)

		inCell, _ := excelize.CoordinatesToCellName(startCol, 2)
		outCell, _ := excelize.CoordinatesToCellName(startCol+1, 2)
		_ = f.SetCellValue(detailSheet, inCell, "In")
		_ = f.SetCellValue(detailSheet, outCell, "Out")
		_ = f.SetCellStyle(detailSheet, inCell, outCell, headerStyle)
	}

	for day := 1; day <= matrix.DaysInMonth; day++ {
		row := day + 2
		dayCell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(detailSheet, dayCell, day); err != nil {
			return err
		}
		for i, u := range matrix.Users {
			startCol := 2 + i*2
			cell := u.Days[day]

			inCell, _ := excelize.CoordinatesToCellName(startCol, row)
			outCell, _ := excelize.CoordinatesToCellName(startCol+1, row)
			_ = f.SetCellValue(detailSheet, inCell, clockOrDash(cell.In))
			_ = f.SetCellValue(detailSheet, outCell, clockOrDash(cell.Out))
			if cell.In != nil && cell.Late {
				_ = f.SetCellStyle(detailSheet, inCell, inCell, lateStyle)
			}
		}
	}

	_ = f.SetColWidth(detailSheet, "A", "A", 6)
	return nil
}

func clockOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04")
}
