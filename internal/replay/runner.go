package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"farmLedger/internal/farm"
	"farmLedger/internal/model"
	"farmLedger/internal/referral"
	"farmLedger/internal/roles"
	"farmLedger/internal/token"
)

// RunConfig holds runtime settings for the replay runner.
type RunConfig struct {
	OpsPath      string
	SnapshotPath string
	BatchSize    int
}

// Runner streams operation records from the ops journal and applies them to
// the ledger in sequence order. Rejected operations are counted and logged;
// they never stop the replay, since the journal records attempts, not only
// successes.
type Runner struct {
	cfg       RunConfig
	engine    *farm.Engine
	bank      *token.Bank
	auth      *roles.Authority
	referrals *referral.Ledger
	blocks    *farm.ManualBlocks
	cursor    CursorStore
	snapshots *SnapshotStore
	logger    *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, engine *farm.Engine, bank *token.Bank, auth *roles.Authority, referrals *referral.Ledger, blocks *farm.ManualBlocks, cursor CursorStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		engine:    engine,
		bank:      bank,
		auth:      auth,
		referrals: referrals,
		blocks:    blocks,
		cursor:    cursor,
		snapshots: &SnapshotStore{Path: cfg.SnapshotPath},
		logger:    logger,
	}
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("engine is nil")
	}
	if r.bank == nil {
		return fmt.Errorf("bank is nil")
	}
	if r.blocks == nil {
		return fmt.Errorf("block source is nil")
	}
	if r.cfg.OpsPath == "" {
		return fmt.Errorf("ops path is required")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 1000
	}

	var fromSeq uint64
	if r.cursor != nil {
		seq, ok, err := r.cursor.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			fromSeq = seq
			r.logger.Info("resume from cursor", zap.Uint64("last_applied_seq", seq))
		}
	}

	file, err := os.Open(r.cfg.OpsPath)
	if err != nil {
		return fmt.Errorf("open ops journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lastSeq := fromSeq
	var total, applied, skipped, rejected, sinceSave int

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var op model.OpRecord
		if err := json.Unmarshal(line, &op); err != nil {
			rejected++
			r.logger.Warn("decode op", zap.Error(err))
			continue
		}
		if op.Seq <= fromSeq {
			skipped++
			continue
		}

		r.blocks.SetHeight(op.BlockNumber)
		if err := r.apply(op); err != nil {
			rejected++
			r.logger.Warn("op rejected",
				zap.Uint64("seq", op.Seq),
				zap.String("kind", op.Kind),
				zap.Error(err),
			)
		} else {
			applied++
		}
		lastSeq = op.Seq
		sinceSave++

		if sinceSave >= r.cfg.BatchSize {
			if err := r.saveProgress(ctx, lastSeq); err != nil {
				return err
			}
			sinceSave = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan ops journal: %w", err)
	}

	if err := r.saveProgress(ctx, lastSeq); err != nil {
		return err
	}

	r.logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Int("rejected", rejected),
		zap.Uint64("last_seq", lastSeq),
	)
	return nil
}

func (r *Runner) saveProgress(ctx context.Context, lastSeq uint64) error {
	if r.cursor != nil {
		if err := r.cursor.Save(ctx, lastSeq); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
	}
	if r.snapshots.Path == "" {
		return nil
	}

	snap := Snapshot{
		Farm:           r.engine.Export(),
		Bank:           r.bank.Export(),
		LastAppliedSeq: lastSeq,
		BlockNumber:    r.blocks.Height(),
	}
	if r.auth != nil {
		snap.Roles = r.auth.Export()
	}
	if r.referrals != nil {
		snap.Referrals = r.referrals.Export()
	}
	if err := r.snapshots.Save(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *Runner) apply(op model.OpRecord) error {
	actor, err := ParseOptionalAccount(op.Actor)
	if err != nil {
		return err
	}

	switch op.Kind {
	case model.OpAddPool:
		asset, err := ParseAccount(op.Asset)
		if err != nil {
			return err
		}
		_, err = r.engine.AddPool(actor, op.Weight, asset, op.FeeBP, op.AccrueAll)
		return err

	case model.OpSetPool:
		return r.engine.SetPool(actor, int(op.Pool), op.Weight, op.FeeBP, op.AccrueAll)

	case model.OpAccrue:
		return r.engine.Accrue(int(op.Pool))

	case model.OpAccrueAll:
		return r.engine.AccrueAll()

	case model.OpDeposit:
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		referrer, err := ParseOptionalAccount(op.Referrer)
		if err != nil {
			return err
		}
		return r.engine.Deposit(actor, int(op.Pool), amount, referrer)

	case model.OpWithdraw:
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.engine.Withdraw(actor, int(op.Pool), amount)

	case model.OpEmergencyWithdraw:
		return r.engine.EmergencyWithdraw(actor, int(op.Pool))

	case model.OpMint:
		asset, err := ParseAccount(op.Asset)
		if err != nil {
			return err
		}
		to, err := ParseAccount(op.Address)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.bank.Mint(asset, to, amount)

	case model.OpGrantRole, model.OpRevokeRole:
		level, err := roles.ParseLevel(op.Level)
		if err != nil {
			return err
		}
		target, err := ParseAccount(op.Target)
		if err != nil {
			return err
		}
		if op.Kind == model.OpGrantRole {
			return r.engine.GrantRole(actor, level, target)
		}
		return r.engine.RevokeRole(actor, level, target)

	case model.OpRenounceRole:
		return r.engine.RenounceRole(actor)

	case model.OpAddReferral:
		user, err := ParseAccount(op.Target)
		if err != nil {
			return err
		}
		referrer, err := ParseAccount(op.Referrer)
		if err != nil {
			return err
		}
		_, err = r.engine.AddReferral(actor, user, referrer)
		return err

	case model.OpRemoveReferral:
		user, err := ParseAccount(op.Target)
		if err != nil {
			return err
		}
		_, err = r.engine.RemoveReferral(actor, user)
		return err

	case model.OpSetDevAddress, model.OpSetFeeAddress:
		address, err := ParseAccount(op.Address)
		if err != nil {
			return err
		}
		if op.Kind == model.OpSetDevAddress {
			return r.engine.SetDevAddress(actor, address)
		}
		return r.engine.SetFeeAddress(actor, address)

	case model.OpUpdateEmissionRate:
		value, err := ParseAmount(op.Value)
		if err != nil {
			return err
		}
		return r.engine.UpdateEmissionRate(actor, value)

	case model.OpUpdateMaxSupply:
		value, err := ParseAmount(op.Value)
		if err != nil {
			return err
		}
		return r.engine.UpdateMaxSupply(actor, value)

	case model.OpUpdateReferralBonus:
		return r.engine.UpdateReferralBonusBP(actor, op.BonusBP)

	default:
		return fmt.Errorf("unknown op kind: %s", op.Kind)
	}
}
