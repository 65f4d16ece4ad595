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
	"farmLedger/internal/journal"
	"farmLedger/internal/journal/postgres"
	"farmLedger/internal/referral"
	"farmLedger/internal/replay"
	"farmLedger/internal/roles"
	"farmLedger/internal/token"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Admin == "" {
		return fmt.Errorf("admin address is required")
	}
	if cfg.RewardAsset == "" {
		return fmt.Errorf("reward asset is required")
	}
	if cfg.FarmAccount == "" {
		return fmt.Errorf("farm account is required")
	}

	adminAddr, err := replay.ParseAccount(cfg.Admin)
	if err != nil {
		return fmt.Errorf("parse admin: %w", err)
	}
	rewardAsset, err := replay.ParseAccount(cfg.RewardAsset)
	if err != nil {
		return fmt.Errorf("parse reward asset: %w", err)
	}
	farmAccount, err := replay.ParseAccount(cfg.FarmAccount)
	if err != nil {
		return fmt.Errorf("parse farm account: %w", err)
	}
	devAddress, err := replay.ParseOptionalAccount(cfg.DevAddress)
	if err != nil {
		return fmt.Errorf("parse dev address: %w", err)
	}
	feeAddress, err := replay.ParseOptionalAccount(cfg.FeeAddress)
	if err != nil {
		return fmt.Errorf("parse fee address: %w", err)
	}
	emission, err := replay.ParseAmount(cfg.Emission)
	if err != nil {
		return fmt.Errorf("parse emission: %w", err)
	}
	maxSupply, err := replay.ParseAmount(cfg.MaxSupply)
	if err != nil {
		return fmt.Errorf("parse max supply: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainID := cfg.ChainID
	if chainID == 0 && cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		chainID, err = chainClient.ChainID(ctx)
		chainClient.Close()
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
	}

	bank := token.NewBank()
	blocks := farm.NewManualBlocks(0)
	auth := roles.NewAuthority()
	auth.Bootstrap(adminAddr, roles.Admin)
	referrals := referral.NewLedger()

	sinks := journal.Multi{journal.NewJsonlJournal(cfg.Out)}

	var pgStore *postgres.Store
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		sinks = append(sinks, replay.NewPGJournal(ctx, pgStore, cfg.MaxRetries, cfg.RetryBackoff, logger))
	}

	engine, err := farm.NewEngine(farm.Params{
		ChainID:          chainID,
		EmissionPerBlock: emission,
		BonusMultiplier:  cfg.BonusMultiplier,
		StartBlock:       cfg.StartBlock,
		MaxSupply:        maxSupply,
		RewardAsset:      rewardAsset,
		FarmAccount:      farmAccount,
		DevAddress:       devAddress,
		FeeAddress:       feeAddress,
		ReferralBonusBP:  cfg.ReferralBonusBP,
	}, bank, blocks, auth, sinks, logger)
	if err != nil {
		return err
	}
	engine.WireReferralLedger(referrals)

	// A previous run's snapshot carries the full ledger state; without it
	// a resumed run would skip already-applied ops over an empty ledger.
	snapshots := &replay.SnapshotStore{Path: cfg.Snapshot}
	if snap, ok, err := snapshots.Load(); err != nil {
		return err
	} else if ok {
		if err := engine.Restore(snap.Farm); err != nil {
			return fmt.Errorf("restore ledger: %w", err)
		}
		if err := bank.Restore(snap.Bank); err != nil {
			return fmt.Errorf("restore bank: %w", err)
		}
		if err := auth.Restore(snap.Roles); err != nil {
			return fmt.Errorf("restore roles: %w", err)
		}
		if err := referrals.Restore(snap.Referrals); err != nil {
			return fmt.Errorf("restore referrals: %w", err)
		}
		blocks.SetHeight(snap.BlockNumber)
		logger.Info("resume from snapshot",
			zap.Uint64("last_applied_seq", snap.LastAppliedSeq),
			zap.Uint64("block_number", snap.BlockNumber),
		)
	}

	var cursor replay.CursorStore
	switch {
	case pgStore != nil:
		cursor = &replay.DBCursorStore{Store: pgStore, Name: "replay"}
	case cfg.CursorEnabled:
		cursor = &replay.FileCursorStore{Path: cfg.Cursor}
	}

	runner := replay.NewRunner(replay.RunConfig{
		OpsPath:      cfg.Ops,
		SnapshotPath: cfg.Snapshot,
		BatchSize:    cfg.BatchSize,
	}, engine, bank, auth, referrals, blocks, cursor, logger)

	logger.Info("replay start",
		zap.Uint64("chain_id", chainID),
		zap.String("ops", cfg.Ops),
		zap.String("out", cfg.Out),
		zap.String("snapshot", cfg.Snapshot),
		zap.Bool("postgres", pgStore != nil),
		zap.String("admin", adminAddr.Hex()),
		zap.String("reward_asset", rewardAsset.Hex()),
		zap.String("emission", emission.String()),
	)

	return runner.Run(ctx)
}
