package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-analyzer/internal/api"
	"stock-analyzer/observability"

	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the analysis scheduler",
	Long:  `Serves the JSON API and Prometheus metrics. When PIPELINE_SCHEDULE is set the configured symbols are analyzed on that cron schedule.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply database migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveMigrate && a.Repo() != nil {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	if cfg.HasSchedule() {
		if err := a.Scheduler().Start(ctx, cfg.Pipeline.Schedule); err != nil {
			return err
		}
	}

	var store api.Store
	if a.Repo() != nil {
		store = a.Repo()
	}
	handler := api.NewHandler(store, a.Runner(), cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// analyze requests run the pipeline synchronously
		WriteTimeout: time.Duration(cfg.Pipeline.TimeoutSec)*time.Second + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		observability.Info("shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	observability.Info("HTTP server stopped")
	return nil
}
