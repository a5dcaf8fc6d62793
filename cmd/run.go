package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/api"
	"github.com/stashy/stashy/internal/fetcher/collyfetch"
	"github.com/stashy/stashy/internal/metrics"
	"github.com/stashy/stashy/internal/pool"
	"github.com/stashy/stashy/internal/store/postgres"
)

// newRunCmd creates the 'run' subcommand: the worker pool itself.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Starts the fetch worker pool",
		Long: `Starts the configured number of fetch workers against the shared queue.
Workers run until SIGINT or SIGTERM, finishing in-flight items before
exiting.`,

		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	connector := postgres.NewConnector(cfg.DB.DSN)
	fetcher := collyfetch.New(collyfetch.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
	})

	shutdownOps, err := startOpsServer(ctx, connector)
	if err != nil {
		return err
	}
	defer shutdownOps()

	p := pool.New(connector, fetcher, pool.Config{
		Workers:      cfg.Pool.Workers,
		WorkerIDBase: cfg.Pool.WorkerID,
		BatchSize:    cfg.Pool.BatchSize,
	}, logger)

	p.Run(ctx)
	logger.Info("engine stopped")
	return nil
}

// startOpsServer serves health/metrics/queue endpoints when server.port is
// set. It owns its own store connection, separate from the workers'.
func startOpsServer(ctx context.Context, connector *postgres.Connector) (func(), error) {
	if cfg.Server.Port <= 0 {
		return func() {}, nil
	}

	store, err := connector.ConnectStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect ops store: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(store, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown failed", zap.Error(err))
		}
		if err := store.Close(shutdownCtx); err != nil {
			logger.Warn("ops store close failed", zap.Error(err))
		}
	}, nil
}
