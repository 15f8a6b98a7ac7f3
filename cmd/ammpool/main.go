package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ammpool",
		Short:        "Constant-product liquidity pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario of pool operations into an event journal",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "input scenario JSONL")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("pg-dsn", "", "write events to Postgres instead of JSONL")
	simulateCmd.Flags().String("rpc", "", "optional RPC URL for ERC20 symbol lookup")
	simulateCmd.Flags().String("deployer", "0x000000000000000000000000000000000000a11c", "address pool identities are derived from")
	simulateCmd.Flags().Bool("admin-badges", true, "issue admin badges and gate price queries")
	simulateCmd.Flags().Int("batch-size", 500, "events per storage batch")
	simulateCmd.Flags().Int("max-retries", 5, "maximum retry attempts for storage writes")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("metrics-out", "", "write Prometheus metrics to this textfile")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the event journal into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input events JSONL (default: the pool_events table)")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Bool("migrate", true, "create missing tables before writing")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local file for the journal cursor")
	aggregateCmd.Flags().String("state-name", "aggregate", "cursor key in the aggregator_cursor table")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "reserve of the input asset")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output asset")
	quoteCmd.Flags().String("amount-in", "", "input amount")
	quoteCmd.Flags().String("fee", "0.003", "fee rate in [0, 1]")
	quoteCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
