// Package cli holds the rosterimport commands.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/roster-import-service/internal/config"
	"github.com/SAP-F-2025/roster-import-service/internal/utils"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rosterimport",
		Short: "Roster import service for sports clubs",
		Long: `rosterimport maps, validates and commits player rosters uploaded as
CSV or Excel files. Run "serve" for the HTTP API or "simulate" for an offline
dry run of a single file.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(
		NewServeCmd(),
		NewSimulateCmd(),
		NewSweepCacheCmd(),
		NewMigrateCmd(),
		NewLoadBenchmarksCmd(),
	)

	return rootCmd
}

// loadConfig reads the environment and builds the logger every command uses.
func loadConfig() (*config.Config, *slog.Logger, utils.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := utils.NewLogger(cfg.Environment)
	return cfg, utils.ToSlogLogger(logger), logger, nil
}
