// Package cmd defines and implements the CLI commands for the stashy
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/config"
	"github.com/stashy/stashy/internal/logging"
	"github.com/stashy/stashy/internal/store/postgres"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// newRootCmd creates and configures the root command. Configuration is
// loaded before any subcommand runs; the db/workers/batch/worker-id flags
// override the corresponding config keys.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stashy",
		Short: "A distributed URL-fetch worker pool over a shared Postgres queue.",
		Long: `stashy runs pools of fetch workers against a shared durable URL queue.
Workers claim batches of pending URLs, fetch them over HTTP, store the raw
pages, and commit success or failure outcomes with bounded retries. Any
number of stashy processes may share one queue; claim exclusivity is
enforced by the database.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlagOverrides(cmd)

			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stashy.yaml)")
	cmd.PersistentFlags().String("db", "", "Postgres connection string")
	cmd.PersistentFlags().Int("workers", 0, "number of fetch workers")
	cmd.PersistentFlags().Int("batch", 0, "URLs per claim batch")
	cmd.PersistentFlags().String("worker-id", "", "worker identity base string")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newEnqueueCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newInitDBCmd())

	return cmd
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB.DSN, _ = flags.GetString("db")
	}
	if flags.Changed("workers") {
		cfg.Pool.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("batch") {
		cfg.Pool.BatchSize, _ = flags.GetInt("batch")
	}
	if flags.Changed("worker-id") {
		cfg.Pool.WorkerID, _ = flags.GetString("worker-id")
	}
}

// connectStore opens one dedicated store connection for a CLI command.
func connectStore(ctx context.Context) (*postgres.Store, error) {
	store, err := postgres.NewConnector(cfg.DB.DSN).ConnectStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect queue store: %w", err)
	}
	return store, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
