// Package tabular turns uploaded roster files into ParsedTables and writes
// simulation reports back out as CSV or Excel.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

var (
	ErrEmptyInput        = errors.New("input has no header row")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Format of an uploaded roster.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatExcel Format = "xlsx"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
}

// ParseFile dispatches on the file extension.
func ParseFile(filename string, r io.Reader) (importer.ParsedTable, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return importer.ParsedTable{}, err
	}
	switch format {
	case FormatExcel:
		return ParseExcel(r, "")
	case FormatTSV:
		return parseDelimited(r, '\t')
	}
	return ParseCSV(r)
}

// ParseCSV reads comma separated text with a header row.
func ParseCSV(r io.Reader) (importer.ParsedTable, error) {
	return parseDelimited(r, ',')
}

// ParsePasted reads text pasted from a spreadsheet or email, guessing the
// delimiter from the header line.
func ParsePasted(text string) (importer.ParsedTable, error) {
	text = strings.TrimSpace(text)
	header, _, _ := strings.Cut(text, "\n")
	delim := ','
	switch {
	case strings.Contains(header, "\t"):
		delim = '\t'
	case strings.Count(header, ";") > strings.Count(header, ","):
		delim = ';'
	}
	return parseDelimited(strings.NewReader(text), delim)
}

func parseDelimited(r io.Reader, delim rune) (importer.ParsedTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return importer.ParsedTable{}, fmt.Errorf("failed to read delimited text: %w", err)
	}
	return buildTable(records)
}

// ParseExcel reads the named sheet, or the first one when sheet is empty.
func ParseExcel(r io.Reader, sheet string) (importer.ParsedTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return importer.ParsedTable{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return importer.ParsedTable{}, ErrEmptyInput
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return importer.ParsedTable{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return buildTable(rows)
}

// buildTable trims headers, names blank ones, drops empty rows and pads or
// truncates every row to the header arity.
func buildTable(records [][]string) (importer.ParsedTable, error) {
	for len(records) > 0 && blankRow(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return importer.ParsedTable{}, ErrEmptyInput
	}

	raw := records[0]
	for len(raw) > 0 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	if len(raw) == 0 {
		return importer.ParsedTable{}, ErrEmptyInput
	}

	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		headers[i] = h
	}

	table := importer.ParsedTable{Headers: headers, Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blankRow(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadAll buffers r so multipart uploads can be parsed more than once.
func ReadAll(r io.Reader) (*bytes.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return bytes.NewReader(data), nil
}
