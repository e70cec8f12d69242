package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func testMatrix() MonthlyMatrix {
	in := time.Date(2025, 4, 1, 9, 20, 0, 0, time.UTC)
	out := time.Date(2025, 4, 1, 17, 45, 0, 0, time.UTC)
	return MonthlyMatrix{
		Year:        2025,
		Month:       time.April,
		DaysInMonth: 30,
		Users: []UserMonth{
			{
				UserID:           1,
				Name:             "An",
				Days:             map[int]DayCell{1: {In: &in, Out: &out, Late: true}},
				DaysPresent:      1,
				DaysLate:         1,
				TotalLateMinutes: 20,
			},
			{UserID: 2, Name: "Binh", Days: map[int]DayCell{}},
		},
	}
}

func TestRenderWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter().Render(testMatrix(), &buf); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		if err != nil {
			t.Fatalf("read %s!%s: %v", sheet, ref, err)
		}
		return v
	}

	// Summary sheet: header row plus one row per user.
	if got := cell("Summary", "B2"); got != "Name" {
		t.Errorf("Summary B2 = %q, want Name", got)
	}
	if got := cell("Summary", "B3"); got != "An" {
		t.Errorf("Summary B3 = %q, want An", got)
	}
	if got := cell("Summary", "C3"); got != "1" {
		t.Errorf("Summary C3 (days present) = %q, want 1", got)
	}
	if got := cell("Summary", "E3"); got != "20" {
		t.Errorf("Summary E3 (late minutes) = %q, want 20", got)
	}

	// Detail sheet: day 1 occupies row 3; user 1 uses columns B/C.
	if got := cell("Detail", "A3"); got != "1" {
		t.Errorf("Detail A3 = %q, want 1", got)
	}
	if got := cell("Detail", "B3"); got != "09:20" {
		t.Errorf("Detail B3 (in) = %q, want 09:20", got)
	}
	if got := cell("Detail", "C3"); got != "17:45" {
		t.Errorf("Detail C3 (out) = %q, want 17:45", got)
	}
	// User 2 has no records on day 1.
	if got := cell("Detail", "D3"); got != "-" {
		t.Errorf("Detail D3 = %q, want -", got)
	}

	// Day 30 is the last rendered row.
	if got := cell("Detail", "A32"); got != "30" {
		t.Errorf("Detail A32 = %q, want 30", got)
	}
	if got := cell("Detail", "A33"); got != "" {
		t.Errorf("Detail A33 = %q, want empty", got)
	}
}
