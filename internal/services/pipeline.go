package services

import (
	"log/slog"
	"time"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/metrics"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
)

// PipelineConfig tunes the importer components the service drives.
type PipelineConfig struct {
	Mapper         importer.MapperConfig
	Validator      importer.ValidatorConfig
	NameSimilarity float64
	LookupTimeout  time.Duration
	NGBSources     []string
	SportAgeBounds map[string]importer.AgeBounds
}

// Pipeline bundles the importer stages wired to the repository.
type Pipeline struct {
	Mapper     *importer.Mapper
	Validator  *importer.Validator
	Detector   *importer.DuplicateDetector
	Simulator  *importer.Simulator
	Benchmarks *importer.BenchmarkApplicator

	sportAgeBounds map[string]importer.AgeBounds
}

// NewPipeline wires the stages. cache and assistant may be nil; when m is set
// both are wrapped with metrics.
func NewPipeline(repo repositories.Repository, cache importer.MappingCache, assistant importer.Assistant, cfg PipelineConfig, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	validator := importer.NewValidator(cfg.Validator)
	order := validator.Config().DateOrder
	detector := importer.NewDuplicateDetector(repo.Players(), order, cfg.NameSimilarity, cfg.LookupTimeout)

	mapper := importer.NewMapper(cfg.Mapper, importer.MapperDeps{
		History:   repo.MappingHistory(),
		Cache:     m.InstrumentCache(cache),
		Assistant: m.InstrumentAssistant(assistant),
	}, logger)

	return &Pipeline{
		Mapper:         mapper,
		Validator:      validator,
		Detector:       detector,
		Simulator:      importer.NewSimulator(validator, detector, logger),
		Benchmarks:     importer.NewBenchmarkApplicator(repo.Benchmarks(), importer.NewNGBMatcher(cfg.NGBSources), cfg.LookupTimeout, logger),
		sportAgeBounds: cfg.SportAgeBounds,
	}
}

// qualityOptions returns scoring options consistent with row validation.
func (p *Pipeline) qualityOptions(sportCode string) importer.QualityOptions {
	vc := p.Validator.Config()
	return importer.QualityOptions{
		DateOrder:      vc.DateOrder,
		AgeBounds:      importer.AgeBounds{Min: vc.MinAge, Max: vc.MaxAge},
		SportCode:      sportCode,
		SportAgeBounds: p.sportAgeBounds,
		Now:            vc.Now,
	}
}
