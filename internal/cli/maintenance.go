package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/scheduler"
	"github.com/SAP-F-2025/roster-import-service/pkg"
)

// NewSweepCacheCmd purges expired mapping cache entries once, for deployments
// that run the sweep as a cron job instead of inside serve.
func NewSweepCacheCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep-cache",
		Short: "Delete expired mapping cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, slogger, _, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, slogger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := withTimeout(cmd.Context(), timeout)
			defer cancel()

			sweeper := scheduler.NewCacheSweeper(a.store, scheduler.SweeperConfig{Backend: cfg.Cache.Backend}, a.publisher, a.metrics, slogger)
			n, err := sweeper.SweepOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired mappings from %s\n", n, cfg.Cache.Backend)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long")
	return cmd
}

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, slogger, _, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := pkg.InitDatabase(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := pkg.Migrate(db); err != nil {
				return err
			}
			slogger.Info("Database schema is up to date")
			return nil
		},
	}
}

// NewLoadBenchmarksCmd seeds reference skill benchmarks from a JSON array.
func NewLoadBenchmarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-benchmarks <file.json>",
		Short: "Load reference skill benchmarks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var benchmarks []*models.SkillBenchmark
			if err := json.Unmarshal(raw, &benchmarks); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			cfg, slogger, _, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, slogger, appOptions{noEvents: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.services.Benchmark().LoadBenchmarks(cmd.Context(), benchmarks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d benchmarks\n", len(benchmarks))
			return nil
		},
	}
}
