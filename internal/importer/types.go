package importer

import (
	"fmt"
	"strings"
)

// ParsedTable is the raw, immutable parser output. Every row has the same
// arity as Headers and cells are uncoerced strings.
type ParsedTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Validate checks the arity contract.
func (t ParsedTable) Validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table has no headers")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}

// Samples returns up to n non-empty trimmed values of column col.
func (t ParsedTable) Samples(col, n int) []string {
	var out []string
	for _, row := range t.Rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}

// Record is one row keyed by target field.
type Record map[TargetField]string

// Get returns the trimmed value of f.
func (r Record) Get(f TargetField) string {
	return strings.TrimSpace(r[f])
}

func (r Record) Has(f TargetField) bool {
	return r.Get(f) != ""
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// BuildRecords projects table rows through the mappings. When two columns are
// bound to the same field the first non-empty cell wins.
func BuildRecords(table ParsedTable, mappings []ColumnMapping) []Record {
	records := make([]Record, len(table.Rows))
	for i, row := range table.Rows {
		rec := make(Record)
		for _, m := range mappings {
			if !m.Mapped() || m.ColumnIndex < 0 || m.ColumnIndex >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[m.ColumnIndex])
			if v == "" || rec.Has(m.TargetField) {
				continue
			}
			rec[m.TargetField] = v
		}
		records[i] = rec
	}
	return records
}

// Strategy names the mapping heuristic that produced a ColumnMapping.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategyAlias      Strategy = "alias"
	StrategyHistorical Strategy = "historical"
	StrategyFuzzy      Strategy = "fuzzy"
	StrategyContent    Strategy = "content"
	StrategyAI         Strategy = "ai"
	StrategyManual     Strategy = "manual"
	StrategyNone       Strategy = "none"
)

// ColumnMapping binds a source column to a target field. An empty TargetField
// means the column is unresolved.
type ColumnMapping struct {
	SourceColumn string      `json:"sourceColumn"`
	ColumnIndex  int         `json:"columnIndex"`
	TargetField  TargetField `json:"targetField,omitempty"`
	Confidence   int         `json:"confidence"`
	Strategy     Strategy    `json:"strategy"`
	Reasoning    string      `json:"reasoning"`
}

func (m ColumnMapping) Mapped() bool { return m.TargetField != "" }

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type IssueCode string

const (
	IssueRequired           IssueCode = "required"
	IssueInvalidEmail       IssueCode = "invalid_email"
	IssueEmailTypo          IssueCode = "email_typo"
	IssueInvalidPhone       IssueCode = "invalid_phone"
	IssueDateNormalized     IssueCode = "date_normalized"
	IssueAmbiguousDate      IssueCode = "ambiguous_date"
	IssueInvalidDate        IssueCode = "invalid_date"
	IssueFutureDate         IssueCode = "future_date"
	IssueUnrecognizedGender IssueCode = "unrecognized_gender"
	IssueRowFailure         IssueCode = "row_failure"
)

// ValidationIssue is one defect found in one row.
type ValidationIssue struct {
	RowIndex          int         `json:"rowIndex"`
	Field             TargetField `json:"field,omitempty"`
	Severity          Severity    `json:"severity"`
	Code              IssueCode   `json:"code"`
	Message           string      `json:"message"`
	Value             string      `json:"value,omitempty"`
	AutoFix           *string     `json:"autoFixValue,omitempty"`
	AutoFixConfidence int         `json:"autoFixConfidence,omitempty"`
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

func hasWarnings(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity == SeverityWarning {
			return true
		}
	}
	return false
}
