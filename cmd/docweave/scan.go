package docweave

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"docweave/internal/cache"
	"docweave/internal/logger"
	"docweave/internal/orchestrator"
	"docweave/internal/progress"
	"docweave/internal/store"
	"docweave/internal/telemetry"
)

var scanCmd = &cobra.Command{
	Use:   "scan PROJECT_PATH",
	Short: "Walk, extract, and persist a project's symbol graph without the LLM stage",
	Long: `scan runs the walk/extract/persist stages only, leaving every
symbol's summary and documentation NULL. Useful for inspecting the graph
or its extraction cost before spending any LLM budget on it.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&noDocker, "no-docker", false, "Run LSP servers on the host instead of inside Docker.")
	_ = viper.BindPFlag("scan.no_docker", scanCmd.Flags().Lookup("no-docker"))
}

func runScan(cmd *cobra.Command, args []string) error {
	projectPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("docweave: resolve project path: %w", err)
	}
	if info, err := os.Stat(projectPath); err != nil || !info.IsDir() {
		return fmt.Errorf("docweave: %s is not a directory", projectPath)
	}

	log, err := logger.New(logger.Options{Debug: viper.GetBool("debug")})
	if err != nil {
		return fmt.Errorf("docweave: build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfigTables()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	tracer, shutdownTracer, err := telemetry.Setup(ctx, "dev")
	if err != nil {
		return fmt.Errorf("docweave: setup telemetry: %w", err)
	}
	defer shutdownTracer(ctx)

	fc, err := cache.NewFileCache(0)
	if err != nil {
		return fmt.Errorf("docweave: build cache: %w", err)
	}
	defer fc.Close()

	reporter := progress.New()
	defer reporter.Close()

	result, err := orchestrator.Run(ctx, orchestrator.Deps{
		Logger:   log,
		Tracer:   tracer,
		Progress: reporter,
		Cache:    fc,
	}, orchestrator.Options{
		ProjectRoot: projectPath,
		Config:      cfg,
		Container:   !viper.GetBool("scan.no_docker"),
	})
	if err != nil {
		return fmt.Errorf("docweave: extraction failed: %w", err)
	}

	dbPath := filepath.Join(projectPath, ".docweave", filepath.Base(projectPath)+".db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("docweave: open database: %w", err)
	}
	defer db.Close()

	if err := db.Persist(ctx, result.Root, result.Edges, result.Project); err != nil {
		return fmt.Errorf("docweave: persist graph: %w", err)
	}

	log.Info("scan complete", zap.Int("call_edges", len(result.Edges)), zap.String("database", dbPath))
	fmt.Printf("docweave: scanned %s, wrote %s\n", filepath.Base(projectPath), dbPath)
	return nil
}
