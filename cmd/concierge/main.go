package main

import (
	"fmt"
	"os"
	"path/filepath"

	"concierge/internal/config"
	"concierge/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	assumeYes  bool

	// Logger
	logger *zap.Logger

	// Loaded configuration, available to all subcommands after
	// PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "concierge - transcript-to-action pipeline",
	Long: `concierge turns conversation transcripts into executed actions.

It extracts actionable requests from a transcript, classifies each one
against the registered worker capabilities, synthesizes a brand-new
worker on the fly when nothing matches, and routes every action through
an interactive review loop until the operator accepts the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// init runs before a config exists.
		if cmd.Name() == "init" {
			cfg = config.DefaultConfig()
			cfg.Workspace = workspace
			return nil
		}

		path := configPath
		if path == "" {
			path = config.DefaultConfigPath(workspace)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("run 'concierge init' first: %w", err)
		}
		if workspace != "." {
			cfg.Workspace = workspace
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}

		return logging.Configure(logging.Options{
			Workspace:  cfg.Workspace,
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// inWorkspace resolves a configured path against the workspace root.
func inWorkspace(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.Workspace, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.concierge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Approve every action and accept every result without prompting")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
