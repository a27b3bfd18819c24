package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/mesikahq/hospital-api/internal/dates"
)

const (
	summarySheet    = "Summary"
	statusSheet     = "Appointments by Status"
	bloodGroupSheet = "Patients by Blood Group"
)

// WriteWorkbook writes s as an XLSX workbook with a summary sheet and one
// sheet per breakdown.
func WriteWorkbook(w io.Writer, s *Statistics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"Report date", dates.Format(s.GeneratedAt)},
		{"Doctors", s.DoctorCount},
		{"Nurses", s.NurseCount},
		{"Patients", s.PatientCount},
		{"Administrators", s.AdminCount},
		{"Total appointments", s.TotalAppointments},
		{"Appointments today", s.TodayAppointments},
	}
	if err := writeRows(f, summarySheet, summary, headerStyle); err != nil {
		return err
	}

	breakdowns := []struct {
		sheet  string
		header []any
		counts map[string]int
	}{
		{statusSheet, []any{"Status", "Appointments"}, s.AppointmentStatusCounts},
		{bloodGroupSheet, []any{"Blood group", "Patients"}, s.PatientsByBloodGroup},
	}
	for _, b := range breakdowns {
		if _, err := f.NewSheet(b.sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", b.sheet, err)
		}
		rows := [][]any{b.header}
		for _, key := range sortedKeys(b.counts) {
			rows = append(rows, []any{key, b.counts[key]})
		}
		if err := writeRows(f, b.sheet, rows, headerStyle); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
