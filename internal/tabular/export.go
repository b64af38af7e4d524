package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

var reportHeaders = []string{"Row", "Action", "First Name", "Last Name", "Date of Birth", "Matched Player", "Reason", "Issues"}

func reportRow(p importer.PlayerPreview) []string {
	var issues []string
	for _, is := range p.Issues {
		issues = append(issues, fmt.Sprintf("[%s] %s: %s", is.Severity, is.Field, is.Message))
	}
	matched := p.MatchedExistingID
	if p.MatchedRowIndex != nil {
		matched = "row " + strconv.Itoa(*p.MatchedRowIndex+1)
	}
	return []string{
		strconv.Itoa(p.RowIndex + 1),
		string(p.Action),
		p.Record.Get(importer.FieldFirstName),
		p.Record.Get(importer.FieldLastName),
		p.Record.Get(importer.FieldDateOfBirth),
		matched,
		p.Reason,
		strings.Join(issues, "; "),
	}
}

// WriteSimulationCSV renders a dry run as CSV, one line per source row.
func WriteSimulationCSV(res importer.SimulationResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range res.Previews {
		if err := writer.Write(reportRow(p)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// WriteSimulationExcel renders a dry run as a workbook with a preview sheet
// and a summary sheet.
func WriteSimulationExcel(res importer.SimulationResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Preview"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for r, p := range res.Previews {
		for c, v := range reportRow(p) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	summary := "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	s := res.Summary
	lines := [][]any{
		{"Total rows", s.TotalRows},
		{"Create", s.Create},
		{"Update", s.Update},
		{"Skip", s.Skip},
		{"Duplicate", s.Duplicate},
		{"Conflict", s.Conflict},
		{"Rows with warnings", s.RowsWithWarnings},
		{"Rows with errors", s.RowsWithErrors},
		{"Benchmarks to apply", s.BenchmarksToApply},
	}
	for i, line := range lines {
		f.SetCellValue(summary, fmt.Sprintf("A%d", i+1), line[0])
		f.SetCellValue(summary, fmt.Sprintf("B%d", i+1), line[1])
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
