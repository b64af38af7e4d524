package models

import (
	"time"

	"gorm.io/datatypes"
)

// SkillBenchmark is reference data: the expected rating of a skill for an age group.
type SkillBenchmark struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	SportCode      string  `json:"sport_code" gorm:"not null;size:50;index:idx_benchmark_lookup,priority:1"`
	SkillCode      string  `json:"skill_code" gorm:"not null;size:100;index:idx_benchmark_lookup,priority:2"`
	AgeGroup       string  `json:"age_group" gorm:"not null;size:30;index:idx_benchmark_lookup,priority:3"`
	Gender         string  `json:"gender" gorm:"not null;size:10;default:all"`
	Level          string  `json:"level" gorm:"not null;size:30;default:competitive"`
	ExpectedRating float64 `json:"expected_rating" gorm:"not null"`
	Source         string  `json:"source" gorm:"size:100"`
	// Ranking among equally specific rows; lower wins
	Priority  int       `json:"priority" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
}

func (SkillBenchmark) TableName() string {
	return "skill_benchmarks"
}

// BenchmarkTemplate is an organization's custom rating set.
type BenchmarkTemplate struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	OrganizationID string         `json:"organization_id" gorm:"not null;size:64;index"`
	Name           string         `json:"name" gorm:"not null;size:100"`
	Ratings        datatypes.JSON `json:"ratings" gorm:"type:jsonb"` // map[string]float64
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (BenchmarkTemplate) TableName() string {
	return "benchmark_templates"
}

// AllModels lists every table the service migrates.
func AllModels() []any {
	return []any{
		&Player{},
		&SkillRating{},
		&ImportSession{},
		&ImportCommitRecord{},
		&MappingHistory{},
		&MappingCacheEntry{},
		&SkillBenchmark{},
		&BenchmarkTemplate{},
	}
}
