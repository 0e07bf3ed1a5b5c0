package docweave

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"docweave/internal/cache"
	"docweave/internal/config"
	"docweave/internal/docgen"
	"docweave/internal/llm"
	"docweave/internal/logger"
	"docweave/internal/orchestrator"
	"docweave/internal/progress"
	"docweave/internal/render"
	"docweave/internal/store"
	"docweave/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run PROJECT_PATH",
	Short: "Walk, extract, persist, and document a project end to end",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	// pflag shorthands are restricted to a single ASCII character, so the
	// spec's two-letter short forms (-nd, -od) are registered as long
	// flags only; -p/-m/-c/-d keep their single-character shorthand.
	runCmd.Flags().BoolVar(&noDocker, "no-docker", false, "Run LSP servers on the host instead of inside Docker.")
	runCmd.Flags().StringVar(&outputDocs, "output-docs", "", "Directory to write rendered documentation into.")
	runCmd.Flags().StringVarP(&provider, "provider", "p", "ollama", "LLM backend: ollama, openai, or anthropic.")
	runCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model identifier for the chosen provider.")
	runCmd.Flags().StringVarP(&contextFile, "project-context", "c", "", "Text file with extra project context for the LLM prompts.")
	runCmd.Flags().StringVar(&formatFlag, "format", "markdown", "Rendered documentation format: markdown, html, json, or rst.")

	for _, name := range []string{"no-docker", "output-docs", "provider", "model", "project-context", "format"} {
		_ = viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
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

	dbPath := filepath.Join(projectPath, ".docweave", filepath.Base(projectPath)+".db")
	if store.Exists(dbPath) {
		if !promptUseExisting(dbPath) {
			if err := store.Erase(dbPath); err != nil {
				return fmt.Errorf("docweave: erase existing database: %w", err)
			}
			log.Info("erased existing database", zap.String("path", dbPath))
		}
	}

	client, err := resolveLLMClient()
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

	cfg, err := loadConfigTables()
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, orchestrator.Deps{
		Logger:   log,
		Tracer:   tracer,
		Progress: reporter,
		Cache:    fc,
	}, orchestrator.Options{
		ProjectRoot: projectPath,
		Config:      cfg,
		Container:   !viper.GetBool("no-docker"),
	})
	if err != nil {
		return fmt.Errorf("docweave: extraction failed: %w", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("docweave: open database: %w", err)
	}
	defer db.Close()

	if err := db.Persist(ctx, result.Root, result.Edges, result.Project); err != nil {
		return fmt.Errorf("docweave: persist graph: %w", err)
	}

	if client != nil {
		projectContext, _ := readContextFile(viper.GetString("project-context"))
		if err := docgen.Generate(ctx, log, client, result.Root, result.Edges, docgen.Options{ProjectContext: projectContext}); err != nil {
			return fmt.Errorf("docweave: documentation stage: %w", err)
		}
		if err := db.Persist(ctx, result.Root, result.Edges, result.Project); err != nil {
			return fmt.Errorf("docweave: persist documentation: %w", err)
		}
	}

	if out := viper.GetString("output-docs"); out != "" {
		if err := renderTree(result, out, render.Format(viper.GetString("format"))); err != nil {
			return fmt.Errorf("docweave: render documentation: %w", err)
		}
	}

	fmt.Printf("docweave: completed for project %s\n", filepath.Base(projectPath))
	return nil
}

func promptUseExisting(dbPath string) bool {
	fmt.Fprintf(os.Stderr, "docweave: database %s already exists. Use it (u) or erase it (e)? [u/e]: ", dbPath)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "e")
}

func loadConfigTables() (*config.Tables, error) {
	dir := viper.GetString("config_dir")
	if dir == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("docweave: load config: %w", err)
	}
	return cfg, nil
}

func readContextFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func resolveLLMClient() (llm.Client, error) {
	backend := viper.GetString("provider")
	model := viper.GetString("model")

	if backend == "" || backend == "disabled" {
		return nil, nil
	}
	if backend == "ollama" && model == "" {
		selected, err := promptOllamaModel()
		if err != nil {
			return nil, err
		}
		model = selected
	}
	if backend != "ollama" && model == "" {
		return nil, fmt.Errorf("docweave: --model is required for provider %q", backend)
	}

	client, err := llm.NewClient(llm.Config{Backend: backend, Model: model})
	if err != nil {
		return nil, fmt.Errorf("docweave: configure LLM backend %q: %w", backend, err)
	}
	return client, nil
}

// promptOllamaModel lists locally available Ollama models and prompts the
// user to pick one by number, matching original_source's cli.py flow.
func promptOllamaModel() (string, error) {
	ollama := llm.NewOllamaClient("http://localhost:11434", "")
	models, err := ollama.ListModels(context.Background())
	if err != nil || len(models) == 0 {
		return "", fmt.Errorf("docweave: no Ollama models found or Ollama is not running")
	}

	fmt.Println("Available Ollama models:")
	for i, m := range models {
		fmt.Printf("%d: %s\n", i+1, m)
	}
	fmt.Print("Select Ollama model by number: ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(models) {
		return "", fmt.Errorf("docweave: invalid model selection %q", line)
	}
	return models[choice-1], nil
}
