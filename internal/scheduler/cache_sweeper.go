// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/roster-import-service/internal/cache"
	"github.com/SAP-F-2025/roster-import-service/internal/events"
	"github.com/SAP-F-2025/roster-import-service/internal/metrics"
)

var ErrAlreadyStarted = errors.New("cache sweeper already started")

// CacheSweeper purges expired mapping cache entries on a cron schedule.
type CacheSweeper struct {
	store     cache.Store
	backend   string
	schedule  string
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

type SweeperConfig struct {
	Backend  string
	Schedule string // standard cron spec or descriptor such as "@every 1h"
}

func NewCacheSweeper(store cache.Store, cfg SweeperConfig, publisher events.EventPublisher, m *metrics.Metrics, logger *slog.Logger) *CacheSweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1h"
	}
	return &CacheSweeper{
		store:     store,
		backend:   cfg.Backend,
		schedule:  cfg.Schedule,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SweepOnce deletes every entry that expired at or before now.
func (s *CacheSweeper) SweepOnce(ctx context.Context) (int, error) {
	start := s.now()
	n, err := s.store.PurgeExpired(ctx, start)
	if err != nil {
		s.logger.ErrorContext(ctx, "Mapping cache sweep failed", "backend", s.backend, "error", err)
		return 0, fmt.Errorf("purge expired mappings: %w", err)
	}

	s.metrics.ObservePurge(s.backend, n)
	s.logger.InfoContext(ctx, "Mapping cache sweep completed",
		"backend", s.backend,
		"purged", n,
		"duration", time.Since(start))

	if n > 0 && s.publisher != nil {
		ev := events.NewCacheSweptEvent(events.CacheSweptEvent{Backend: s.backend, Purged: n, SweptAt: start})
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish cache sweep event", "error", err)
		}
	}
	return n, nil
}

// Start registers the sweep job and starts the cron runner.
func (s *CacheSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.SweepOnce(s.ctx)
	}); err != nil {
		s.cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Mapping cache sweeper started", "schedule", s.schedule, "backend", s.backend)
	return nil
}

// Stop cancels a running sweep and waits for the cron runner to finish.
func (s *CacheSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Mapping cache sweeper stopped")
}
