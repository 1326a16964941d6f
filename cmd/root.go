package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
)

var (
	configPath string
	logLevel   string
	logger     *slog.Logger

	// cfg is loaded before any command runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "metaopt",
	Short: "Metaheuristic optimization engine",
	Long: `metaopt searches numeric, permutation and variable-length parameter
spaces with sampling, local search, genetic, annealing, tabu and mayfly
strategies. Runs can be executed once from the command line or submitted
to the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		level, err := config.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg = loaded

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "metaopt.yaml", "Config file (YAML or JSON); missing file uses defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
}
