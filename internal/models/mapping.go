package models

import "time"

// MappingHistory is a column mapping a user confirmed in a completed import.
type MappingHistory struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	OrganizationID   string    `json:"organization_id" gorm:"not null;size:64;uniqueIndex:idx_mapping_history_column,priority:1"`
	NormalizedColumn string    `json:"normalized_column" gorm:"not null;size:255;uniqueIndex:idx_mapping_history_column,priority:2"`
	SourceColumn     string    `json:"source_column" gorm:"size:255"`
	TargetField      string    `json:"target_field" gorm:"not null;size:50"`
	TimesUsed        int       `json:"times_used" gorm:"not null;default:1"`
	LastUsedAt       time.Time `json:"last_used_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (MappingHistory) TableName() string {
	return "mapping_history"
}

// MappingCacheEntry backs the Postgres mapping cache store.
type MappingCacheEntry struct {
	KeyHash        string    `json:"key_hash" gorm:"primaryKey;size:64"`
	Pattern        string    `json:"pattern" gorm:"not null;size:255"`
	Samples        string    `json:"samples" gorm:"type:text"`
	SuggestedField string    `json:"suggested_field" gorm:"not null;size:50"`
	Confidence     int       `json:"confidence"`
	Reasoning      string    `json:"reasoning" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"not null;index"`
}

func (MappingCacheEntry) TableName() string {
	return "mapping_cache_entries"
}
