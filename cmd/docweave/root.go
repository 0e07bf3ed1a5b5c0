// Package docweave wires docweave's cobra command tree: run, scan, and
// preview, with flags merged against an optional project config file and
// DOCWEAVE_* environment variables via viper.
package docweave

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	debug        bool
	noDocker     bool
	outputDocs   string
	provider     string
	modelFlag    string
	contextFile  string
	configDir    string
	otlpEndpoint string
	formatFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "docweave",
	Short: "Walks a project, harvests its symbol graph via LSP, and documents it with an LLM",
	Long: `docweave walks a project directory, drives one LSP server per
detected language to harvest symbol definitions and cross-references,
persists the resulting graph to a local SQLite database, and asks a
pluggable LLM backend to generate per-symbol documentation in dependency
order, leaves first.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding languages.jsonc, lsp-servers.jsonc, ignore.jsonc, gitignore-templates.jsonc (built-in defaults when unset).")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC endpoint setting; it is not read, and traces are created but never exported.")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("otlp_endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(previewCmd)
}

func initViper() {
	viper.SetConfigName(".docweaverc")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("DOCWEAVE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "docweave: warning: reading .docweaverc.yaml: %v\n", err)
		}
	}
}
