package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labguide/internal/config"
	"labguide/internal/logging"
)

var (
	// Global flags
	configPath  string
	statePath   string
	verbose     bool
	projectName string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "labguide",
	Short: "labguide - AI Workbench tutorial engine",
	Long: `labguide drives the AI Workbench onboarding tutorial from the
command line. It renders the lesson navigation, validates lab steps
against the workbench query service, and tracks completion across
sessions.

Run without arguments to show the navigation with progress.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if statePath != "" {
			cfg.State.Path = statePath
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNav(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "labguide.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "progress state file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&projectName, "project", "", "workbench project the checks run against")

	rootCmd.AddCommand(navCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(projectsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
