package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/roster-import-service/internal/config"
	"github.com/SAP-F-2025/roster-import-service/internal/handlers"
	"github.com/SAP-F-2025/roster-import-service/internal/scheduler"
)

func NewServeCmd() *cobra.Command {
	var (
		port            string
		shutdownTimeout time.Duration
		noSweeper       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the import HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, slogger, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if cfg.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, slogger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if !noSweeper {
				sweeper := scheduler.NewCacheSweeper(a.store, scheduler.SweeperConfig{
					Backend:  cfg.Cache.Backend,
					Schedule: cfg.Cache.SweepSchedule,
				}, a.publisher, a.metrics, slogger)
				if err := sweeper.Start(); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			auth, err := newAuthenticator(cfg.Auth)
			if err != nil {
				return err
			}
			hm := handlers.NewHandlerManager(a.services, auth, a.registry, logger)
			server := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           handlers.NewRouter(hm, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				slogger.Info("HTTP server listening", "addr", server.Addr, "auth_mode", cfg.Auth.Mode)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				return err
			case <-ctx.Done():
			}

			slogger.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "time to drain in-flight requests")
	cmd.Flags().BoolVar(&noSweeper, "no-sweeper", false, "do not run the mapping cache sweeper in this process")
	return cmd
}

func newAuthenticator(cfg config.AuthConfig) (handlers.Authenticator, error) {
	switch cfg.Mode {
	case "header":
		return handlers.HeaderAuthenticator{}, nil
	case "casdoor":
		client := handlers.NewCasdoorClient(cfg.CasdoorEndpoint, cfg.CasdoorClientID, cfg.CasdoorClientSecret,
			cfg.CasdoorCertificate, cfg.CasdoorOrganization, cfg.CasdoorApplication)
		return handlers.NewCasdoorAuthenticator(client), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}
