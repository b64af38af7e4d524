package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/config"
	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/services"
	"github.com/SAP-F-2025/roster-import-service/internal/tabular"
	"github.com/SAP-F-2025/roster-import-service/pkg"
)

type simulateOptions struct {
	sportCode   string
	output      string
	sqlitePath  string
	useDatabase bool
	applyFixes  bool
	skills      []string
	strategy    string
	userID      string
	orgID       string
}

func NewSimulateCmd() *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <roster-file>",
		Short: "Map and dry-run a roster file without writing anything",
		Long: `simulate parses a CSV, TSV or Excel roster, maps its columns and predicts
what a commit would do for every row. By default it runs against an empty
in-memory database; pass --use-database to match against DATABASE_URL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.sportCode, "sport", "", "sport code used for age bounds and benchmarks")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the per-row report to a .csv or .xlsx file")
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite", "file::memory:?cache=shared", "sqlite database to match players against")
	cmd.Flags().BoolVar(&opts.useDatabase, "use-database", false, "match against the configured postgres database")
	cmd.Flags().BoolVar(&opts.applyFixes, "apply-fixes", false, "apply automatic fixes before validating")
	cmd.Flags().StringSliceVar(&opts.skills, "skills", nil, "skills to pre-fill ratings for")
	cmd.Flags().StringVar(&opts.strategy, "benchmark-strategy", "", "benchmark strategy (blank, middle, age-appropriate, ngb-benchmarks)")
	cmd.Flags().StringVar(&opts.userID, "user", "cli", "user id recorded on lookups")
	cmd.Flags().StringVar(&opts.orgID, "org", "local", "organization whose players and mapping history are used")
	return cmd
}

func runSimulate(cmd *cobra.Command, path string, opts simulateOptions) error {
	cfg, slogger, _, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	table, err := tabular.ParseFile(filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	appOpts := appOptions{noEvents: true}
	if !opts.useDatabase {
		var db *gorm.DB
		if db, err = pkg.InitSQLite(opts.sqlitePath); err != nil {
			return err
		}
		appOpts.db = db
		appOpts.cacheBackend = config.CacheBackendMemory
	}
	a, err := newApp(cmd.Context(), cfg, slogger, appOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	req := &models.PreviewRequest{
		Headers:        table.Headers,
		Rows:           table.Rows,
		SportCode:      opts.sportCode,
		Skills:         opts.skills,
		ApplyAutoFixes: opts.applyFixes,
	}
	if opts.strategy != "" {
		req.Benchmark = &models.BenchmarkSettingsRequest{Strategy: opts.strategy}
	}

	actor := services.Actor{UserID: opts.userID, OrganizationID: opts.orgID}
	preview, err := a.services.Import().Preview(cmd.Context(), actor, req)
	if err != nil {
		return err
	}

	printPreview(cmd.OutOrStdout(), preview)

	if opts.output != "" {
		if err := writeReport(opts.output, preview.Simulation); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nReport written to %s\n", opts.output)
	}
	return nil
}

func printPreview(out io.Writer, p *services.PreviewResponse) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tFIELD\tSTRATEGY\tCONFIDENCE")
	for _, m := range p.Mappings {
		field := string(m.TargetField)
		if field == "" {
			field = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", m.SourceColumn, field, m.Strategy, m.Confidence)
	}
	w.Flush()

	if len(p.MissingFields) > 0 {
		fmt.Fprintf(out, "\nUnmapped required fields: %s\n", strings.Join(p.MissingFields, ", "))
	}

	s := p.Simulation.Summary
	fmt.Fprintf(out, "\nQuality: %d (%s)\n", p.Quality.OverallScore, p.Quality.Grade)
	fmt.Fprintf(out, "Rows: %d  create: %d  update: %d  skip: %d  duplicate: %d  conflict: %d\n",
		s.TotalRows, s.Create, s.Update, s.Skip, s.Duplicate, s.Conflict)
	fmt.Fprintf(out, "Rows with errors: %d  with warnings: %d\n", s.RowsWithErrors, s.RowsWithWarnings)
}

func writeReport(path string, result importer.SimulationResult) error {
	var (
		body []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		body, err = tabular.WriteSimulationExcel(result)
	case ".csv":
		body, err = tabular.WriteSimulationCSV(result)
	default:
		return fmt.Errorf("unsupported report format %q, use .csv or .xlsx", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
