package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"farmLedger/internal/chain"
	"farmLedger/internal/config"
	"farmLedger/internal/farm"
	"farmLedger/internal/replay"
	"farmLedger/internal/roles"
	"farmLedger/internal/token"
)

func runPending(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPending(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Account == "" {
		return fmt.Errorf("account is required")
	}
	account, err := replay.ParseAccount(cfg.Account)
	if err != nil {
		return fmt.Errorf("parse account: %w", err)
	}

	snap, ok, err := (&replay.SnapshotStore{Path: cfg.Snapshot}).Load()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("snapshot not found: %s", cfg.Snapshot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	height := cfg.Height
	if height == 0 && cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		height, err = chainClient.LatestBlockNumber(ctx)
		chainClient.Close()
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}
	if height < snap.BlockNumber {
		height = snap.BlockNumber
	}

	bank := token.NewBank()
	if err := bank.Restore(snap.Bank); err != nil {
		return fmt.Errorf("restore bank: %w", err)
	}
	blocks := farm.NewManualBlocks(height)
	auth := roles.NewAuthority()
	if err := auth.Restore(snap.Roles); err != nil {
		return fmt.Errorf("restore roles: %w", err)
	}

	engine, err := farm.NewEngine(farm.Params{}, bank, blocks, auth, nil, logger)
	if err != nil {
		return err
	}
	if err := engine.Restore(snap.Farm); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}

	pending, err := engine.PendingReward(int(cfg.Pool), account)
	if err != nil {
		return err
	}

	logger.Info("pending reward",
		zap.Uint64("pool", cfg.Pool),
		zap.String("account", account.Hex()),
		zap.Uint64("height", height),
		zap.Uint64("snapshot_seq", snap.LastAppliedSeq),
		zap.String("pending", pending.String()),
	)
	fmt.Println(pending.String())
	return nil
}
