package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
)

// Actor is the authenticated caller of an import operation.
type Actor struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// ===== JSON COLUMN HELPERS =====

func encodeJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeJSON[T any](raw datatypes.JSON) (T, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}

// sessionState is the decoded draft of an ImportSession.
type sessionState struct {
	Table     importer.ParsedTable
	Mappings  []importer.ColumnMapping
	Selected  []int
	Decisions map[int]models.ConflictResolution
	Benchmark *importer.BenchmarkSettings
	Skills    []string
}

func decodeSession(s *models.ImportSession) (*sessionState, error) {
	var (
		st  sessionState
		err error
	)
	if st.Table.Headers, err = decodeJSON[[]string](s.Headers); err != nil {
		return nil, fmt.Errorf("decode headers: %w", err)
	}
	if st.Table.Rows, err = decodeJSON[[][]string](s.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if st.Mappings, err = decodeJSON[[]importer.ColumnMapping](s.Mappings); err != nil {
		return nil, fmt.Errorf("decode mappings: %w", err)
	}
	if st.Selected, err = decodeJSON[[]int](s.RowSelections); err != nil {
		return nil, fmt.Errorf("decode row selections: %w", err)
	}
	if st.Decisions, err = decodeJSON[map[int]models.ConflictResolution](s.Decisions); err != nil {
		return nil, fmt.Errorf("decode decisions: %w", err)
	}
	if st.Benchmark, err = decodeJSON[*importer.BenchmarkSettings](s.BenchmarkSettings); err != nil {
		return nil, fmt.Errorf("decode benchmark settings: %w", err)
	}
	if st.Skills, err = decodeJSON[[]string](s.Skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	return &st, nil
}

// encodeInto writes the draft back onto the session columns.
func (st *sessionState) encodeInto(s *models.ImportSession) error {
	columns := []struct {
		dst *datatypes.JSON
		v   any
	}{
		{&s.Headers, st.Table.Headers},
		{&s.Rows, st.Table.Rows},
		{&s.Mappings, st.Mappings},
		{&s.RowSelections, st.Selected},
		{&s.Decisions, st.Decisions},
		{&s.BenchmarkSettings, st.Benchmark},
		{&s.Skills, st.Skills},
	}
	for _, c := range columns {
		raw, err := encodeJSON(c.v)
		if err != nil {
			return err
		}
		*c.dst = raw
	}
	s.TotalRows = len(st.Table.Rows)
	return nil
}

// selectedSet returns nil when every row is selected.
func (st *sessionState) selectedSet() map[int]bool {
	if st.Selected == nil {
		return nil
	}
	set := make(map[int]bool, len(st.Selected))
	for _, i := range st.Selected {
		set[i] = true
	}
	return set
}

func (st *sessionState) simulateOptions(applyAutoFixes bool) importer.SimulateOptions {
	return importer.SimulateOptions{
		ApplyAutoFixes:    applyAutoFixes,
		SelectedRows:      st.selectedSet(),
		BenchmarksEnabled: st.Benchmark != nil && len(st.Skills) > 0,
		Skills:            st.Skills,
	}
}

// ===== MAPPING HELPERS =====

// applyOverrides pins manual choices onto auto mappings. A target claimed by an
// override is released from any other column.
func applyOverrides(mappings []importer.ColumnMapping, overrides []models.MappingOverride) ([]importer.ColumnMapping, error) {
	out := make([]importer.ColumnMapping, len(mappings))
	copy(out, mappings)

	byColumn := make(map[string]int, len(out))
	for i, m := range out {
		byColumn[m.SourceColumn] = i
	}

	manual := make(map[int]bool, len(overrides))
	for _, o := range overrides {
		i, ok := byColumn[o.SourceColumn]
		if !ok {
			return nil, ValidationErrors{*NewValidationError("mappings", "unknown source column", o.SourceColumn)}
		}
		field := importer.TargetField(o.TargetField)
		out[i].TargetField = field
		out[i].Strategy = importer.StrategyManual
		out[i].Confidence = 100
		out[i].Reasoning = "set by user"
		if field == "" {
			out[i].Confidence = 0
			out[i].Reasoning = "unmapped by user"
		}
		manual[i] = true
	}

	for i := range out {
		if manual[i] || !out[i].Mapped() {
			continue
		}
		for j := range manual {
			if out[j].TargetField == out[i].TargetField {
				out[i].TargetField = ""
				out[i].Strategy = importer.StrategyNone
				out[i].Confidence = 0
				out[i].Reasoning = fmt.Sprintf("%s was assigned to %q by the user", out[j].TargetField, out[j].SourceColumn)
				break
			}
		}
	}
	return out, nil
}

// missingRequired lists required fields no column is bound to.
func missingRequired(mappings []importer.ColumnMapping) []string {
	bound := make(map[importer.TargetField]bool, len(mappings))
	for _, m := range mappings {
		if m.Mapped() {
			bound[m.TargetField] = true
		}
	}
	var missing []string
	for _, f := range importer.RequiredFields() {
		if !bound[f] {
			missing = append(missing, string(f))
		}
	}
	return missing
}

func requireMappings(mappings []importer.ColumnMapping) error {
	if missing := missingRequired(mappings); len(missing) > 0 {
		return newRuleError(ErrMissingRequiredMaps, "required_mappings",
			"required fields are not mapped: "+strings.Join(missing, ", "),
			map[string]any{"missing": missing})
	}
	return nil
}

func benchmarkSettingsFrom(req *models.BenchmarkSettingsRequest) *importer.BenchmarkSettings {
	if req == nil {
		return nil
	}
	return &importer.BenchmarkSettings{
		Strategy:   importer.BenchmarkStrategy(req.Strategy),
		TemplateID: req.TemplateID,
		Gender:     req.Gender,
		Level:      req.Level,
	}
}

// statusForStep is the session status a saved wizard step implies.
func statusForStep(step models.ImportStep) models.ImportStatus {
	switch step {
	case models.StepUpload:
		return models.ImportUploading
	case models.StepMapping:
		return models.ImportMapping
	case models.StepSelection:
		return models.ImportSelecting
	default:
		return models.ImportReviewing
	}
}

func sortedRows(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// fillBlanks keeps only the incoming values for fields the player lacks.
func fillBlanks(existing, incoming importer.Record) importer.Record {
	fills := importer.Record{}
	for f, v := range incoming {
		if !existing.Has(f) && strings.TrimSpace(v) != "" {
			fills[f] = v
		}
	}
	return fills
}
