package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
	"github.com/SAP-F-2025/roster-import-service/internal/validator"
)

// BenchmarkService manages the custom rating templates of an organization.
type BenchmarkService interface {
	CreateTemplate(ctx context.Context, actor Actor, req *models.CreateBenchmarkTemplateRequest) (*models.BenchmarkTemplate, error)
	ListTemplates(ctx context.Context, actor Actor) ([]*models.BenchmarkTemplate, error)
	LoadBenchmarks(ctx context.Context, benchmarks []*models.SkillBenchmark) error
}

type benchmarkService struct {
	repo      repositories.Repository
	validator *validator.Validator
	logger    *slog.Logger
}

func NewBenchmarkService(repo repositories.Repository, v *validator.Validator, logger *slog.Logger) BenchmarkService {
	if logger == nil {
		logger = slog.Default()
	}
	return &benchmarkService{repo: repo, validator: v, logger: logger}
}

func (s *benchmarkService) CreateTemplate(ctx context.Context, actor Actor, req *models.CreateBenchmarkTemplateRequest) (*models.BenchmarkTemplate, error) {
	if s.validator != nil {
		if err := s.validator.ValidateStruct(req); err != nil {
			return nil, validator.ToValidationErrors(err)
		}
	}

	// stored on the integer 1-5 scale the applicator hands out
	ratings := make(map[string]float64, len(req.Ratings))
	for skill, r := range req.Ratings {
		ratings[skill] = float64(importer.ClampRating(r))
	}
	raw, err := encodeJSON(ratings)
	if err != nil {
		return nil, err
	}

	template := &models.BenchmarkTemplate{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		Name:           req.Name,
		Ratings:        raw,
	}
	if err := s.repo.Benchmarks().CreateTemplate(ctx, nil, template); err != nil {
		return nil, fmt.Errorf("failed to create benchmark template: %w", err)
	}
	s.logger.InfoContext(ctx, "Benchmark template created", "template_id", template.ID, "organization_id", actor.OrganizationID, "skills", len(ratings))
	return template, nil
}

func (s *benchmarkService) ListTemplates(ctx context.Context, actor Actor) ([]*models.BenchmarkTemplate, error) {
	templates, err := s.repo.Benchmarks().ListTemplates(ctx, nil, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list benchmark templates: %w", err)
	}
	return templates, nil
}

// LoadBenchmarks seeds reference benchmark rows in one transaction.
func (s *benchmarkService) LoadBenchmarks(ctx context.Context, benchmarks []*models.SkillBenchmark) error {
	if len(benchmarks) == 0 {
		return nil
	}
	return s.repo.Benchmarks().CreateBenchmarks(ctx, nil, benchmarks)
}
