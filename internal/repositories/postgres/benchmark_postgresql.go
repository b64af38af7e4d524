package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
)

type BenchmarkPostgreSQL struct {
	db *gorm.DB
}

func NewBenchmarkPostgreSQL(db *gorm.DB) *BenchmarkPostgreSQL {
	return &BenchmarkPostgreSQL{db: db}
}

var _ repositories.BenchmarkRepository = (*BenchmarkPostgreSQL)(nil)

// FindBenchmarks matches exactly on every dimension; age groups compare case-insensitively.
func (b *BenchmarkPostgreSQL) FindBenchmarks(ctx context.Context, q importer.BenchmarkQuery) ([]importer.Benchmark, error) {
	var rows []*models.SkillBenchmark
	if err := b.db.WithContext(ctx).
		Where("sport_code = ? AND skill_code = ? AND LOWER(age_group) = LOWER(?) AND gender = ? AND level = ?",
			q.SportCode, q.SkillCode, q.AgeGroup, q.Gender, q.Level).
		Order("priority, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]importer.Benchmark, 0, len(rows))
	for _, r := range rows {
		out = append(out, importer.Benchmark{
			SportCode:      r.SportCode,
			SkillCode:      r.SkillCode,
			AgeGroup:       r.AgeGroup,
			Gender:         r.Gender,
			Level:          r.Level,
			ExpectedRating: r.ExpectedRating,
			Source:         r.Source,
		})
	}
	return out, nil
}

func (b *BenchmarkPostgreSQL) FindTemplate(ctx context.Context, templateID string) (*importer.BenchmarkTemplate, error) {
	var row models.BenchmarkTemplate
	err := b.db.WithContext(ctx).First(&row, "id = ?", templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ratings := map[string]float64{}
	if len(row.Ratings) > 0 {
		if err := json.Unmarshal(row.Ratings, &ratings); err != nil {
			return nil, fmt.Errorf("decode template %s ratings: %w", row.ID, err)
		}
	}
	return &importer.BenchmarkTemplate{ID: row.ID, Name: row.Name, Ratings: ratings}, nil
}

func (b *BenchmarkPostgreSQL) CreateBenchmarks(ctx context.Context, tx *gorm.DB, benchmarks []*models.SkillBenchmark) error {
	if len(benchmarks) == 0 {
		return nil
	}
	return getDB(ctx, b.db, tx).CreateInBatches(benchmarks, 100).Error
}

func (b *BenchmarkPostgreSQL) CreateTemplate(ctx context.Context, tx *gorm.DB, template *models.BenchmarkTemplate) error {
	return translate(getDB(ctx, b.db, tx).Create(template).Error)
}

func (b *BenchmarkPostgreSQL) ListTemplates(ctx context.Context, tx *gorm.DB, organizationID string) ([]*models.BenchmarkTemplate, error) {
	var rows []*models.BenchmarkTemplate
	if err := getDB(ctx, b.db, tx).Where("organization_id = ?", organizationID).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
