package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/ai"
	"github.com/SAP-F-2025/roster-import-service/internal/cache"
	"github.com/SAP-F-2025/roster-import-service/internal/config"
	"github.com/SAP-F-2025/roster-import-service/internal/events"
	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/metrics"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/roster-import-service/internal/services"
	"github.com/SAP-F-2025/roster-import-service/internal/validator"
	"github.com/SAP-F-2025/roster-import-service/pkg"
)

// app holds the connections and services one command runs with.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	redis     *redis.Client
	store     cache.Store
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	publisher events.EventPublisher
	services  services.ServiceManager
}

// appOptions lets offline commands swap the database and the cache.
type appOptions struct {
	db           *gorm.DB
	cacheBackend string
	noEvents     bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db = opts.db
	if a.db == nil {
		if a.db, err = pkg.InitDatabase(cfg); err != nil {
			return nil, err
		}
	}
	if err = pkg.Migrate(a.db); err != nil {
		return nil, err
	}

	cacheCfg := cfg.Cache
	if opts.cacheBackend != "" {
		cacheCfg.Backend = opts.cacheBackend
	}
	if cacheCfg.Backend == config.CacheBackendRedis {
		if a.redis, err = pkg.NewRedisClient(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if a.store, err = cacheCfg.CreateStore(a.db, a.redis, logger); err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if opts.noEvents {
		a.publisher = events.NewMockEventPublisher(logger)
	} else if a.publisher, err = cfg.Events.CreateEventPublisher(logger); err != nil {
		return nil, err
	}

	repo := postgres.NewRepository(a.db)
	pipeline := services.NewPipeline(repo, a.store, a.assistant(), pipelineConfig(cfg), a.metrics, logger)
	v := validator.New()
	importService := services.NewImportService(repo, pipeline, a.publisher, a.metrics, v, services.ImportServiceConfig{
		ConflictPolicy: services.SessionConflictPolicy(cfg.Import.SessionConflictPolicy),
		UndoWindow:     cfg.Import.UndoWindow,
	}, logger)
	a.services = services.NewServiceManager(importService, services.NewBenchmarkService(repo, v, logger))
	return a, nil
}

// assistant returns nil when AI mapping is off, which disables that strategy.
func (a *app) assistant() importer.Assistant {
	if !a.cfg.AI.Enabled {
		return nil
	}
	return ai.NewClient(ai.Config{
		APIKey:   a.cfg.AI.APIKey,
		Model:    a.cfg.AI.Model,
		Endpoint: a.cfg.AI.Endpoint,
		Timeout:  a.cfg.AI.Timeout,
	}, a.logger)
}

func pipelineConfig(cfg *config.Config) services.PipelineConfig {
	mapperCfg := importer.DefaultMapperConfig()
	mapperCfg.AIMinConfidence = cfg.AI.MinConfidence
	mapperCfg.AITimeout = cfg.AI.Timeout
	mapperCfg.LookupTimeout = cfg.Import.LookupTimeout
	mapperCfg.CacheTTL = cfg.Cache.TTL

	return services.PipelineConfig{
		Mapper: mapperCfg,
		Validator: importer.ValidatorConfig{
			DateOrder: cfg.Import.DateOrder,
			MinAge:    cfg.Import.MinPlayerAge,
			MaxAge:    cfg.Import.MaxPlayerAge,
		},
		NameSimilarity: cfg.Import.NameSimilarity,
		LookupTimeout:  cfg.Import.LookupTimeout,
		NGBSources:     cfg.Import.NGBSources,
		SportAgeBounds: cfg.Import.SportAgeBounds,
	}
}

// Close releases whatever newApp managed to open.
func (a *app) Close() {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Error while closing resources", "error", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
