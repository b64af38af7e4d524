package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// Every method takes an optional transaction; nil runs against the base connection.

type PlayerRepository interface {
	importer.ExistingPlayerLookup

	Create(ctx context.Context, tx *gorm.DB, player *models.Player) error
	GetByID(ctx context.Context, tx *gorm.DB, organizationID, id string) (*models.Player, error)
	Update(ctx context.Context, tx *gorm.DB, player *models.Player) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	List(ctx context.Context, tx *gorm.DB, organizationID string, filters PlayerFilters) ([]*models.Player, int64, error)
}

type SkillRatingRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, ratings []*models.SkillRating) error
	GetByPlayer(ctx context.Context, tx *gorm.DB, playerID string) ([]*models.SkillRating, error)
	// DeleteImported removes the ratings one session wrote for a player.
	DeleteImported(ctx context.Context, tx *gorm.DB, playerID, sessionID string) (int64, error)
}

type ImportSessionRepository interface {
	// Create returns ErrDuplicate when the user already has an active session in the organization.
	Create(ctx context.Context, tx *gorm.DB, session *models.ImportSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportSession, error)
	// GetActive returns nil, nil when there is no active session.
	GetActive(ctx context.Context, tx *gorm.DB, userID, organizationID string) (*models.ImportSession, error)
	Update(ctx context.Context, tx *gorm.DB, session *models.ImportSession) error
	// TransitionStatus moves a session from one status to another and reports
	// whether the row was still in the expected status.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id string, from, to models.ImportStatus) (bool, error)
	List(ctx context.Context, tx *gorm.DB, organizationID string, filters SessionFilters) ([]*models.ImportSession, int64, error)
}

type CommitRecordRepository interface {
	Create(ctx context.Context, tx *gorm.DB, record *models.ImportCommitRecord) error
	GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.ImportCommitRecord, error)
	MarkUndone(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
}

type MappingHistoryRepository interface {
	importer.HistoryLookup

	// Confirm records that column was mapped to field: a repeat confirmation
	// bumps the usage count, a different field replaces the mapping.
	Confirm(ctx context.Context, tx *gorm.DB, organizationID, sourceColumn string, field importer.TargetField, at time.Time) error
	List(ctx context.Context, tx *gorm.DB, organizationID string) ([]*models.MappingHistory, error)
}

type BenchmarkRepository interface {
	importer.BenchmarkSource

	CreateBenchmarks(ctx context.Context, tx *gorm.DB, benchmarks []*models.SkillBenchmark) error
	CreateTemplate(ctx context.Context, tx *gorm.DB, template *models.BenchmarkTemplate) error
	ListTemplates(ctx context.Context, tx *gorm.DB, organizationID string) ([]*models.BenchmarkTemplate, error)
}

// Repository groups the stores the import service needs.
type Repository interface {
	Players() PlayerRepository
	SkillRatings() SkillRatingRepository
	Sessions() ImportSessionRepository
	CommitRecords() CommitRecordRepository
	MappingHistory() MappingHistoryRepository
	Benchmarks() BenchmarkRepository

	// WithTransaction runs fn in one database transaction.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ===== SHARED FILTER STRUCTS =====

type PlayerFilters struct {
	ImportSessionID *string `json:"import_session_id"`
	Search          string  `json:"search"`
	Limit           int     `json:"limit"`
	Offset          int     `json:"offset"`
}

type SessionFilters struct {
	UserID    *string              `json:"user_id"`
	Status    *models.ImportStatus `json:"status"`
	DateFrom  *time.Time           `json:"date_from"`
	DateTo    *time.Time           `json:"date_to"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortOrder string               `json:"sort_order"` // "asc", "desc"
}
