package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "farm",
		Short:        "Staking reward ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay the ops journal into ledger state",
		RunE:  runReplay,
	}

	runCmd.Flags().String("rpc", "", "RPC URL for chain id lookup")
	runCmd.Flags().Uint64("chain-id", 0, "chain id stamped into journal records")
	runCmd.Flags().String("ops", "./data/ops.jsonl", "input ops JSONL path")
	runCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the event journal")
	runCmd.Flags().String("cursor", "./data/cursor.json", "cursor file path")
	runCmd.Flags().Bool("cursor-enabled", true, "enable cursor persistence")
	runCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	runCmd.Flags().Int("batch-size", 1000, "ops per progress save")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for DB writes")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("admin", "", "genesis admin address")
	runCmd.Flags().String("emission", "0", "reward emission per block")
	runCmd.Flags().Uint64("bonus-multiplier", 1, "emission bonus multiplier")
	runCmd.Flags().Uint64("start-block", 0, "first block eligible for emission")
	runCmd.Flags().String("max-supply", "", "reward supply cap, empty disables")
	runCmd.Flags().String("reward-asset", "", "reward asset address")
	runCmd.Flags().String("farm-account", "", "account holding staked principal and rewards")
	runCmd.Flags().String("dev-address", "", "dev share recipient, empty disables")
	runCmd.Flags().String("fee-address", "", "deposit fee collector")
	runCmd.Flags().Uint32("referral-bonus-bp", 0, "referral commission in basis points")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Query pending reward from a snapshot",
		RunE:  runPending,
	}

	pendingCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	pendingCmd.Flags().Uint64("pool", 0, "pool index")
	pendingCmd.Flags().String("account", "", "account address")
	pendingCmd.Flags().Uint64("height", 0, "height to evaluate at, 0 means snapshot height")
	pendingCmd.Flags().String("rpc", "", "RPC URL to resolve the latest height")
	pendingCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(pendingCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
