package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/chain"
	"ammPool/internal/config"
	"ammPool/internal/factory"
	"ammPool/internal/ledger"
	"ammPool/internal/pool"
	"ammPool/internal/simulate"
	"ammPool/internal/storage"
	"ammPool/internal/storage/postgres"
	"ammPool/internal/tokenmeta"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	deployer, err := simulate.ParseAddress(cfg.Deployer)
	if err != nil {
		return fmt.Errorf("deployer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink storage.Storage
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		sink = store
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	var resolver *tokenmeta.Resolver
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		resolver = tokenmeta.NewResolver(chainClient, logger)
	}

	registry := prometheus.NewRegistry()
	pools := factory.New(factory.Config{
		Deployer:    deployer,
		AdminBadges: cfg.AdminBadges,
	}, ledger.NewCustody(), logger, pool.NewMetrics(registry))

	runner := simulate.NewRunner(simulate.RunConfig{
		Input:        cfg.Scenario,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, pools, sink, resolver, logger)

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("token_symbols", resolver != nil),
		zap.String("deployer", deployer.Hex()),
		zap.Bool("admin_badges", cfg.AdminBadges),
		zap.Int("batch_size", cfg.BatchSize),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.MetricsOut != "" {
		if dir := filepath.Dir(cfg.MetricsOut); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create metrics dir: %w", err)
			}
		}
		if err := prometheus.WriteToTextfile(cfg.MetricsOut, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "operations=%d applied=%d rejected=%d failed=%d pools=%d\n",
		stats.Total, stats.Applied, stats.Rejected, stats.Failed, len(pools.Pools()))
	return nil
}
