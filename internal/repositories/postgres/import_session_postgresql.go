package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
)

type ImportSessionPostgreSQL struct {
	db *gorm.DB
}

func NewImportSessionPostgreSQL(db *gorm.DB) *ImportSessionPostgreSQL {
	return &ImportSessionPostgreSQL{db: db}
}

var _ repositories.ImportSessionRepository = (*ImportSessionPostgreSQL)(nil)

func (s *ImportSessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.ImportSession) error {
	return translate(getDB(ctx, s.db, tx).Create(session).Error)
}

func (s *ImportSessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportSession, error) {
	var session models.ImportSession
	if err := getDB(ctx, s.db, tx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *ImportSessionPostgreSQL) GetActive(ctx context.Context, tx *gorm.DB, userID, organizationID string) (*models.ImportSession, error) {
	var session models.ImportSession
	err := getDB(ctx, s.db, tx).
		Where("active_key = ?", models.ActiveSessionKey(userID, organizationID)).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *ImportSessionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.ImportSession) error {
	return translate(getDB(ctx, s.db, tx).Save(session).Error)
}

// TransitionStatus is a compare-and-set on status. Leaving the active states
// also releases the active key.
func (s *ImportSessionPostgreSQL) TransitionStatus(ctx context.Context, tx *gorm.DB, id string, from, to models.ImportStatus) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	if !to.Active() {
		updates["active_key"] = gorm.Expr("NULL")
	}
	res := getDB(ctx, s.db, tx).
		Model(&models.ImportSession{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *ImportSessionPostgreSQL) List(ctx context.Context, tx *gorm.DB, organizationID string, filters repositories.SessionFilters) ([]*models.ImportSession, int64, error) {
	var sessions []*models.ImportSession
	var total int64

	query := getDB(ctx, s.db, tx).Model(&models.ImportSession{}).Where("organization_id = ?", organizationID)
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if filters.SortOrder == "asc" {
		order = "created_at ASC"
	}
	// rows are large; the list view never needs them
	query = applyPagination(query.Omit("row_data").Order(order), filters.Limit, filters.Offset)
	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

type CommitRecordPostgreSQL struct {
	db *gorm.DB
}

func NewCommitRecordPostgreSQL(db *gorm.DB) *CommitRecordPostgreSQL {
	return &CommitRecordPostgreSQL{db: db}
}

func (c *CommitRecordPostgreSQL) Create(ctx context.Context, tx *gorm.DB, record *models.ImportCommitRecord) error {
	return getDB(ctx, c.db, tx).Create(record).Error
}

func (c *CommitRecordPostgreSQL) GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.ImportCommitRecord, error) {
	var records []*models.ImportCommitRecord
	if err := getDB(ctx, c.db, tx).
		Where("session_id = ?", sessionID).
		Order("row_index, id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (c *CommitRecordPostgreSQL) MarkUndone(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	return getDB(ctx, c.db, tx).
		Model(&models.ImportCommitRecord{}).
		Where("id = ?", id).
		Update("undone_at", at).Error
}
