package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportStatus string

const (
	ImportUploading ImportStatus = "uploading"
	ImportMapping   ImportStatus = "mapping"
	ImportSelecting ImportStatus = "selecting"
	ImportReviewing ImportStatus = "reviewing"
	ImportImporting ImportStatus = "importing"
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
	ImportCancelled ImportStatus = "cancelled"
	ImportUndone    ImportStatus = "undone"
)

var importTransitions = map[ImportStatus][]ImportStatus{
	ImportUploading: {ImportMapping, ImportCancelled},
	ImportMapping:   {ImportSelecting, ImportUploading, ImportCancelled},
	ImportSelecting: {ImportReviewing, ImportMapping, ImportCancelled},
	ImportReviewing: {ImportImporting, ImportSelecting, ImportMapping, ImportCancelled},
	ImportImporting: {ImportCompleted, ImportFailed},
	ImportCompleted: {ImportUndone},
}

func (s ImportStatus) CanTransitionTo(next ImportStatus) bool {
	for _, allowed := range importTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the session still holds the per-user draft slot.
func (s ImportStatus) Active() bool {
	switch s {
	case ImportUploading, ImportMapping, ImportSelecting, ImportReviewing, ImportImporting:
		return true
	}
	return false
}

// ImportStep is the wizard step the user last saved.
type ImportStep string

const (
	StepUpload     ImportStep = "upload"
	StepMapping    ImportStep = "mapping"
	StepSelection  ImportStep = "selection"
	StepBenchmarks ImportStep = "benchmarks"
	StepReview     ImportStep = "review"
	StepComplete   ImportStep = "complete"
)

func (s ImportStep) Valid() bool {
	switch s {
	case StepUpload, StepMapping, StepSelection, StepBenchmarks, StepReview, StepComplete:
		return true
	}
	return false
}

// ImportSession is the persisted draft of one import run.
type ImportSession struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	OrganizationID string `json:"organization_id" gorm:"not null;size:64;index"`
	UserID         string `json:"user_id" gorm:"not null;size:255;index"`

	// "user|organization" while the session is active, NULL afterwards
	ActiveKey *string `json:"-" gorm:"size:330;uniqueIndex"`

	Status ImportStatus `json:"status" gorm:"not null;size:20;index"`
	Step   ImportStep   `json:"step" gorm:"not null;size:20"`

	SourceFileName string `json:"source_file_name" gorm:"size:255"`
	SportCode      string `json:"sport_code" gorm:"size:50"`
	TotalRows      int    `json:"total_rows"`

	Headers           datatypes.JSON `json:"headers" gorm:"type:jsonb"`            // []string
	Rows              datatypes.JSON `json:"-" gorm:"column:row_data;type:jsonb"`  // [][]string
	Mappings          datatypes.JSON `json:"mappings" gorm:"type:jsonb"`           // []importer.ColumnMapping
	RowSelections     datatypes.JSON `json:"row_selections" gorm:"type:jsonb"`     // []int
	Decisions         datatypes.JSON `json:"decisions" gorm:"type:jsonb"`          // map[int]ConflictResolution
	BenchmarkSettings datatypes.JSON `json:"benchmark_settings" gorm:"type:jsonb"` // importer.BenchmarkSettings
	Skills            datatypes.JSON `json:"skills" gorm:"type:jsonb"`             // []string
	Stats             datatypes.JSON `json:"stats" gorm:"type:jsonb"`              // ImportStats

	ErrorMessage *string `json:"error_message,omitempty" gorm:"type:text"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	UndoneAt    *time.Time `json:"undone_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (ImportSession) TableName() string {
	return "import_sessions"
}

func ActiveSessionKey(userID, organizationID string) string {
	return userID + "|" + organizationID
}

// ImportStats is the outcome of a commit, stored on the session.
type ImportStats struct {
	TotalRows      int            `json:"total_rows"`
	Created        int            `json:"created"`
	Updated        int            `json:"updated"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	RatingsCreated int            `json:"ratings_created"`
	Undone         int            `json:"undone"`
	Failures       []RowFailure   `json:"failures,omitempty"`
	SkipReasons    map[string]int `json:"skip_reasons,omitempty"`
	DurationMillis int64          `json:"duration_ms"`
}

type RowFailure struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

type CommitAction string

const (
	CommitCreated CommitAction = "created"
	CommitUpdated CommitAction = "updated"
	CommitFailed  CommitAction = "failed"
)

// ImportCommitRecord remembers what a commit did to one row so it can be undone.
type ImportCommitRecord struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	SessionID      string       `json:"session_id" gorm:"not null;size:36;index"`
	OrganizationID string       `json:"organization_id" gorm:"not null;size:64"`
	RowIndex       int          `json:"row_index" gorm:"not null"`
	PlayerID       *string      `json:"player_id" gorm:"size:36;index"`
	Action         CommitAction `json:"action" gorm:"not null;size:20"`

	// Player fields before an update; empty for creates
	Snapshot datatypes.JSON `json:"snapshot,omitempty" gorm:"type:jsonb"`
	Error    *string        `json:"error,omitempty" gorm:"type:text"`

	UndoneAt  *time.Time `json:"undone_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (ImportCommitRecord) TableName() string {
	return "import_commit_records"
}

// ConflictResolution is the user's explicit decision for a conflicting row.
type ConflictResolution string

const (
	ResolveSkip        ConflictResolution = "skip"
	ResolveMerge       ConflictResolution = "merge"
	ResolveForceCreate ConflictResolution = "force_create"
)

func (r ConflictResolution) Valid() bool {
	switch r {
	case ResolveSkip, ResolveMerge, ResolveForceCreate:
		return true
	}
	return false
}
