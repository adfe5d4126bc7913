package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"stock-analyzer/config"
	"stock-analyzer/internal/app"
	"stock-analyzer/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "stock-analyzer",
	Short: "Reconcile multi-provider fundamentals and value stocks",
	Long: `stock-analyzer pulls statements and metrics from FMP, Alpha Vantage, Finnhub
and SEC EDGAR, reconciles them into a single metric set, runs a DCF valuation
and asks an LLM for a qualitative review and an investment thesis.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the environment and configuration and initializes logging and metrics
func setup(cmd *cobra.Command, args []string) error {
	// Load environment variables
	envLoaded := godotenv.Load() == nil

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	logCloser = observability.Configure(observability.LogOptions{
		Production: cfg.Log.Production,
		Level:      observability.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if !envLoaded {
		observability.Debug("no .env file found, using environment variables")
	}

	observability.InitMetrics()
	return nil
}

// newApp builds the application for a command
func newApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return a, nil
}
