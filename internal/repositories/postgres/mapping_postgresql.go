package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/roster-import-service/internal/cache"
	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
)

type MappingHistoryPostgreSQL struct {
	db *gorm.DB
}

func NewMappingHistoryPostgreSQL(db *gorm.DB) *MappingHistoryPostgreSQL {
	return &MappingHistoryPostgreSQL{db: db}
}

var _ repositories.MappingHistoryRepository = (*MappingHistoryPostgreSQL)(nil)

func (m *MappingHistoryPostgreSQL) FindConfirmedMapping(ctx context.Context, orgID, normalizedColumn string) (*importer.HistoricalMapping, error) {
	var row models.MappingHistory
	err := m.db.WithContext(ctx).
		Where("organization_id = ? AND normalized_column = ?", orgID, normalizedColumn).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &importer.HistoricalMapping{
		Field:      importer.TargetField(row.TargetField),
		TimesUsed:  row.TimesUsed,
		LastUsedAt: row.LastUsedAt,
	}, nil
}

func (m *MappingHistoryPostgreSQL) Confirm(ctx context.Context, tx *gorm.DB, organizationID, sourceColumn string, field importer.TargetField, at time.Time) error {
	normalized := importer.NormalizeColumn(sourceColumn)
	if normalized == "" || !field.Valid() {
		return nil
	}
	db := getDB(ctx, m.db, tx)

	var row models.MappingHistory
	err := db.Where("organization_id = ? AND normalized_column = ?", organizationID, normalized).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.MappingHistory{
			OrganizationID:   organizationID,
			NormalizedColumn: normalized,
			SourceColumn:     sourceColumn,
			TargetField:      string(field),
			TimesUsed:        1,
			LastUsedAt:       at,
		}
		return translate(db.Create(&row).Error)
	case err != nil:
		return err
	}

	if row.TargetField == string(field) {
		row.TimesUsed++
	} else {
		row.TargetField = string(field)
		row.TimesUsed = 1
	}
	row.SourceColumn = sourceColumn
	row.LastUsedAt = at
	return db.Save(&row).Error
}

func (m *MappingHistoryPostgreSQL) List(ctx context.Context, tx *gorm.DB, organizationID string) ([]*models.MappingHistory, error) {
	var rows []*models.MappingHistory
	if err := getDB(ctx, m.db, tx).
		Where("organization_id = ?", organizationID).
		Order("times_used DESC, normalized_column").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MappingCachePostgreSQL is the Postgres mapping cache store.
type MappingCachePostgreSQL struct {
	db *gorm.DB
}

func NewMappingCachePostgreSQL(db *gorm.DB) *MappingCachePostgreSQL {
	return &MappingCachePostgreSQL{db: db}
}

var _ cache.Store = (*MappingCachePostgreSQL)(nil)

func (m *MappingCachePostgreSQL) Get(ctx context.Context, key importer.CacheKey) (*importer.CachedMapping, error) {
	var row models.MappingCacheEntry
	err := m.db.WithContext(ctx).First(&row, "key_hash = ?", cache.KeyHash(key)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &importer.CachedMapping{
		Key:            importer.CacheKey{Pattern: row.Pattern, Samples: row.Samples},
		SuggestedField: importer.TargetField(row.SuggestedField),
		Confidence:     row.Confidence,
		Reasoning:      row.Reasoning,
		CreatedAt:      row.CreatedAt,
		ExpiresAt:      row.ExpiresAt,
	}, nil
}

func (m *MappingCachePostgreSQL) Put(ctx context.Context, entry importer.CachedMapping) error {
	row := models.MappingCacheEntry{
		KeyHash:        cache.KeyHash(entry.Key),
		Pattern:        entry.Key.Pattern,
		Samples:        entry.Key.Samples,
		SuggestedField: string(entry.SuggestedField),
		Confidence:     entry.Confidence,
		Reasoning:      entry.Reasoning,
		CreatedAt:      entry.CreatedAt,
		ExpiresAt:      entry.ExpiresAt,
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"suggested_field", "confidence", "reasoning", "created_at", "expires_at"}),
	}).Create(&row).Error
}

func (m *MappingCachePostgreSQL) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res := m.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.MappingCacheEntry{})
	return int(res.RowsAffected), res.Error
}
