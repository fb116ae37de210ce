// Package cmd holds the ledgerctl operator commands.
package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the Odyssey ledger",
	Long: `ledgerctl runs ledger maintenance against the configured database and queue.

Example:
  ledgerctl depreciation run --tenant 1 --month 2025-03
  ledgerctl integrity check --since-days 35
  ledgerctl jobs trigger depreciation --month 2025-03`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(depreciationCmd)
	rootCmd.AddCommand(integrityCmd)
	rootCmd.AddCommand(jobsCmd)
}

// env is the runtime each command works against.
type env struct {
	cfg      *app.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	services *app.Services
}

func (e *env) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func loadConfig() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	return cfg, app.NewLogger(cfg), nil
}

// openEnv connects to postgres and wires the services without a cache.
func openEnv(ctx context.Context) (*env, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}
	services, err := app.NewServices(cfg, pool, nil, nil, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, pool: pool, services: services}, nil
}
