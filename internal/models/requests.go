package models

// Request payloads shared by the HTTP handlers, the CLI and the import service.

type StartSessionRequest struct {
	SourceFileName string     `json:"source_file_name" validate:"max=255"`
	SportCode      string     `json:"sport_code" validate:"omitempty,max=50"`
	Headers        []string   `json:"headers" validate:"required,min=1,max=200,dive,max=255"`
	Rows           [][]string `json:"rows" validate:"max=20000"`
}

// MappingOverride is a manual mapping; an empty TargetField unmaps the column.
type MappingOverride struct {
	SourceColumn string `json:"source_column" validate:"required,max=255"`
	TargetField  string `json:"target_field" validate:"omitempty,target_field"`
}

type BenchmarkSettingsRequest struct {
	Strategy   string `json:"strategy" validate:"required,benchmark_strategy"`
	TemplateID string `json:"template_id" validate:"required_if=Strategy custom,max=36"`
	Gender     string `json:"gender" validate:"omitempty,oneof=all male female"`
	Level      string `json:"level" validate:"omitempty,max=30"`
}

type SaveDraftRequest struct {
	Step         ImportStep                 `json:"step" validate:"required,import_step"`
	SportCode    *string                    `json:"sport_code" validate:"omitempty,max=50"`
	Mappings     []MappingOverride          `json:"mappings" validate:"omitempty,dive"`
	SelectedRows []int                      `json:"selected_rows" validate:"omitempty,dive,min=0"`
	Decisions    map[int]ConflictResolution `json:"decisions" validate:"omitempty,dive,conflict_resolution"`
	Benchmark    *BenchmarkSettingsRequest  `json:"benchmark" validate:"omitempty"`
	Skills       []string                   `json:"skills" validate:"omitempty,max=100,dive,required,max=100"`
}

type SimulateRequest struct {
	ApplyAutoFixes bool `json:"apply_auto_fixes"`
}

type CommitRequest struct {
	ApplyAutoFixes bool                       `json:"apply_auto_fixes"`
	Decisions      map[int]ConflictResolution `json:"decisions" validate:"omitempty,dive,conflict_resolution"`
}

// UndoRequest selects the rows to reverse; exactly one selector must be set.
type UndoRequest struct {
	PlayerIDs  []string `json:"player_ids" validate:"omitempty,max=20000,dive,uuid"`
	RowIndexes []int    `json:"row_indexes" validate:"omitempty,max=20000,dive,min=0"`
	All        bool     `json:"all"`
	Reason     string   `json:"reason" validate:"max=500"`
}

// PreviewRequest runs mapping and simulation without a session.
type PreviewRequest struct {
	Headers        []string                  `json:"headers" validate:"required,min=1,max=200,dive,max=255"`
	Rows           [][]string                `json:"rows" validate:"max=20000"`
	Mappings       []MappingOverride         `json:"mappings" validate:"omitempty,dive"`
	SportCode      string                    `json:"sport_code" validate:"omitempty,max=50"`
	Skills         []string                  `json:"skills" validate:"omitempty,max=100,dive,required,max=100"`
	Benchmark      *BenchmarkSettingsRequest `json:"benchmark" validate:"omitempty"`
	ApplyAutoFixes bool                      `json:"apply_auto_fixes"`
}

type CreateBenchmarkTemplateRequest struct {
	Name    string             `json:"name" validate:"required,min=1,max=100"`
	Ratings map[string]float64 `json:"ratings" validate:"required,min=1,dive,min=1,max=5"`
}
