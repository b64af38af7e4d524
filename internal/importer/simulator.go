package importer

import (
	"context"
	"fmt"
	"log/slog"
)

// Action is the simulated outcome of committing one row.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionSkip      Action = "skip"
	ActionDuplicate Action = "duplicate"
	ActionConflict  Action = "conflict"
)

// PlayerPreview predicts what commit will do with one row.
type PlayerPreview struct {
	RowIndex          int               `json:"rowIndex"`
	Action            Action            `json:"action"`
	Reason            string            `json:"reason,omitempty"`
	MatchedExistingID string            `json:"matchedExistingId,omitempty"`
	MatchedRowIndex   *int              `json:"matchedRowIndex,omitempty"`
	Differences       []FieldDifference `json:"differences,omitempty"`
	Issues            []ValidationIssue `json:"issues"`
	Record            Record            `json:"record"`
}

type SimSummary struct {
	TotalRows         int `json:"totalRows"`
	Create            int `json:"create"`
	Update            int `json:"update"`
	Skip              int `json:"skip"`
	Duplicate         int `json:"duplicate"`
	Conflict          int `json:"conflict"`
	RowsWithWarnings  int `json:"rowsWithWarnings"`
	RowsWithErrors    int `json:"rowsWithErrors"`
	BenchmarksToApply int `json:"benchmarksToApply"`
}

type SimulationResult struct {
	Previews []PlayerPreview `json:"previews"`
	Summary  SimSummary      `json:"summary"`
}

// SimulateOptions tunes a dry run. A nil SelectedRows selects every row.
type SimulateOptions struct {
	ApplyAutoFixes    bool
	SelectedRows      map[int]bool
	BenchmarksEnabled bool
	Skills            []string
}

const reasonNotSelected = "not_selected"

// Simulator projects a commit without touching storage.
type Simulator struct {
	validator *Validator
	detector  *DuplicateDetector
	logger    *slog.Logger
}

func NewSimulator(v *Validator, d *DuplicateDetector, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{validator: v, detector: d, logger: logger}
}

// Simulate maps table rows through mappings and previews each of them.
func (s *Simulator) Simulate(ctx context.Context, table ParsedTable, mappings []ColumnMapping, orgID string, opts SimulateOptions) SimulationResult {
	return s.SimulateRecords(ctx, BuildRecords(table, mappings), orgID, opts)
}

// SimulateRecords previews already mapped records. The summary always tallies
// the previews and TotalRows equals len(records).
func (s *Simulator) SimulateRecords(ctx context.Context, records []Record, orgID string, opts SimulateOptions) SimulationResult {
	batch := NewBatchIndex(s.validator.Config().DateOrder)
	previews := make([]PlayerPreview, len(records))
	for i, rec := range records {
		previews[i] = s.previewRow(ctx, i, rec, orgID, opts, batch)
	}
	return SimulationResult{Previews: previews, Summary: Summarize(previews, opts)}
}

func (s *Simulator) previewRow(ctx context.Context, i int, rec Record, orgID string, opts SimulateOptions, batch *BatchIndex) (p PlayerPreview) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Panic while simulating row", "row_index", i, "panic", r)
			p = skippedWithError(i, rec, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if opts.SelectedRows != nil && !opts.SelectedRows[i] {
		return PlayerPreview{RowIndex: i, Action: ActionSkip, Reason: reasonNotSelected, Record: rec}
	}

	effective := rec
	var issues []ValidationIssue
	if opts.ApplyAutoFixes {
		effective, issues = s.validator.ApplyAutoFixesAndRevalidate(i, rec)
	} else {
		issues = s.validator.ValidateRecord(i, rec)
	}
	p = PlayerPreview{RowIndex: i, Issues: issues, Record: effective}

	if HasErrors(issues) {
		p.Action, p.Reason = ActionSkip, "row has validation errors"
		return p
	}

	if bm := batch.Check(effective); bm.IsDuplicate {
		idx := bm.MatchedRowIndex
		p.Action, p.MatchedRowIndex = ActionDuplicate, &idx
		p.Reason = fmt.Sprintf("same player as row %d", idx)
		return p
	}

	match, err := s.detector.CheckExisting(ctx, orgID, effective)
	if err != nil {
		s.logger.WarnContext(ctx, "Existing record check failed", "row_index", i, "error", err)
		failed := skippedWithError(i, effective, err.Error())
		failed.Issues = append(issues, failed.Issues...)
		return failed
	}
	batch.Add(i, effective)

	p.MatchedExistingID = match.MatchedExistingID
	p.Reason = match.Reason
	switch match.Kind {
	case MatchExact:
		p.Action = ActionDuplicate
	case MatchPartial:
		p.Action, p.Differences = ActionConflict, match.Differences
	case MatchCompatible:
		p.Action = ActionUpdate
	default:
		p.Action, p.Reason = ActionCreate, ""
	}
	return p
}

func skippedWithError(i int, rec Record, msg string) PlayerPreview {
	return PlayerPreview{
		RowIndex: i,
		Action:   ActionSkip,
		Reason:   msg,
		Record:   rec,
		Issues: []ValidationIssue{{
			RowIndex: i, Severity: SeverityError, Code: IssueRowFailure, Message: msg,
		}},
	}
}

// Summarize tallies previews.
func Summarize(previews []PlayerPreview, opts SimulateOptions) SimSummary {
	sum := SimSummary{TotalRows: len(previews)}
	for _, p := range previews {
		switch p.Action {
		case ActionCreate:
			sum.Create++
		case ActionUpdate:
			sum.Update++
		case ActionDuplicate:
			sum.Duplicate++
		case ActionConflict:
			sum.Conflict++
		default:
			sum.Skip++
		}
		if HasErrors(p.Issues) {
			sum.RowsWithErrors++
		}
		if hasWarnings(p.Issues) {
			sum.RowsWithWarnings++
		}
	}
	if opts.BenchmarksEnabled {
		sum.BenchmarksToApply = (sum.Create + sum.Update) * len(opts.Skills)
	}
	return sum
}
