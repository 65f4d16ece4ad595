package farm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmLedger/internal/journal"
	"farmLedger/internal/model"
	"farmLedger/internal/referral"
	"farmLedger/internal/roles"
)

// AssetBank is the opaque value-moving capability the ledger consumes for
// both the staked assets and the reward asset. Transfer mechanics, permits,
// and allowances live behind this interface.
type AssetBank interface {
	Move(asset, from, to common.Address, amount *big.Int) error
	Mint(asset, to common.Address, amount *big.Int) error
	BalanceOf(asset, account common.Address) *big.Int
	Minted(asset common.Address) *big.Int
}

// Params configures the reward accrual engine.
type Params struct {
	ChainID          uint64
	EmissionPerBlock *big.Int
	BonusMultiplier  uint64
	StartBlock       uint64
	// MaxSupply freezes emission once the minted reward supply reaches it.
	// Nil or zero disables the cap.
	MaxSupply       *big.Int
	RewardAsset     common.Address
	FarmAccount     common.Address
	DevAddress      common.Address
	FeeAddress      common.Address
	ReferralBonusBP uint16
}

// Engine is the reward accrual ledger: the pool registry, per-position
// bookkeeping, and the deposit/withdraw transaction protocol. Calls are
// serialized by the host; the engine itself only guards against reentrant
// re-entry within a single logical call.
type Engine struct {
	params    Params
	bank      AssetBank
	blocks    BlockSource
	auth      *roles.Authority
	referrals *referral.Ledger
	journal   journal.Journal
	logger    *zap.Logger

	guard            callGuard
	pools            []*Pool
	poolByAsset      map[common.Address]int
	positions        map[positionKey]*Position
	totalAllocWeight uint64
	nextSeq          uint64
}

func NewEngine(params Params, bank AssetBank, blocks BlockSource, auth *roles.Authority, sink journal.Journal, logger *zap.Logger) (*Engine, error) {
	if bank == nil {
		return nil, fmt.Errorf("farm: bank is nil")
	}
	if blocks == nil {
		return nil, fmt.Errorf("farm: block source is nil")
	}
	if auth == nil {
		return nil, fmt.Errorf("farm: role authority is nil")
	}
	if params.ReferralBonusBP > MaxReferralBonusBP {
		return nil, fmt.Errorf("%w: %d bp", ErrBonusTooHigh, params.ReferralBonusBP)
	}
	if params.EmissionPerBlock == nil {
		params.EmissionPerBlock = new(big.Int)
	}
	if params.BonusMultiplier == 0 {
		params.BonusMultiplier = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		params:      params,
		bank:        bank,
		blocks:      blocks,
		auth:        auth,
		journal:     sink,
		logger:      logger,
		poolByAsset: make(map[common.Address]int),
		positions:   make(map[positionKey]*Position),
	}, nil
}

// Params returns a copy of the engine parameters.
func (e *Engine) Params() Params {
	p := e.params
	p.EmissionPerBlock = new(big.Int).Set(e.params.EmissionPerBlock)
	if e.params.MaxSupply != nil {
		p.MaxSupply = new(big.Int).Set(e.params.MaxSupply)
	}
	return p
}

// PoolCount returns the number of registered pools.
func (e *Engine) PoolCount() int {
	return len(e.pools)
}

// TotalAllocWeight returns the sum of all pool allocation weights.
func (e *Engine) TotalAllocWeight() uint64 {
	return e.totalAllocWeight
}

// PoolByIndex returns a copy of the pool at index.
func (e *Engine) PoolByIndex(index int) (Pool, error) {
	p, err := e.pool(index)
	if err != nil {
		return Pool{}, err
	}
	out := *p
	out.AccRewardPerShare = new(big.Int).Set(p.AccRewardPerShare)
	out.Staked = new(big.Int).Set(p.Staked)
	return out, nil
}

// PositionOf returns a copy of the account's position in the pool. A never
// touched position reads as zero.
func (e *Engine) PositionOf(index int, account common.Address) (Position, error) {
	if _, err := e.pool(index); err != nil {
		return Position{}, err
	}
	pos, ok := e.positions[positionKey{pool: index, account: account}]
	if !ok {
		return Position{Staked: new(big.Int), RewardDebt: new(big.Int)}, nil
	}
	return Position{
		Staked:     new(big.Int).Set(pos.Staked),
		RewardDebt: new(big.Int).Set(pos.RewardDebt),
	}, nil
}

// AddPool registers a new staking pool. Requires Operator. With accrueAll,
// all existing pools are brought current first so the weight change does
// not retroactively alter the historical emission split.
func (e *Engine) AddPool(actor common.Address, weight uint64, asset common.Address, feeBP uint16, accrueAll bool) (int, error) {
	if err := e.guard.enter(); err != nil {
		return 0, err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Operator, actor); err != nil {
		return 0, err
	}
	if asset == (common.Address{}) {
		return 0, fmt.Errorf("%w: asset", ErrZeroAddress)
	}
	if feeBP > MaxDepositFeeBP {
		return 0, fmt.Errorf("%w: %d bp", ErrFeeTooHigh, feeBP)
	}
	if _, exists := e.poolByAsset[asset]; exists {
		return 0, fmt.Errorf("%w: %s", ErrPoolExists, asset.Hex())
	}

	if accrueAll {
		e.accrueAllPools()
	}

	height := e.blocks.Height()
	last := height
	if e.params.StartBlock > last {
		last = e.params.StartBlock
	}

	index := len(e.pools)
	e.pools = append(e.pools, &Pool{
		Asset:             asset,
		AllocWeight:       weight,
		LastAccrualBlock:  last,
		AccRewardPerShare: new(big.Int),
		DepositFeeBP:      feeBP,
		Staked:            new(big.Int),
	})
	e.poolByAsset[asset] = index
	e.totalAllocWeight += weight

	events := e.appendEvent(nil, height, actor, model.EventPoolAdded, model.PoolAddedEvent{
		PoolIndex:    uint64(index),
		Asset:        asset.Hex(),
		AllocWeight:  weight,
		DepositFeeBP: feeBP,
	})
	e.flush(events)

	e.logger.Info("pool added",
		zap.Int("pool", index),
		zap.String("asset", asset.Hex()),
		zap.Uint64("weight", weight),
		zap.Uint16("fee_bp", feeBP),
	)
	return index, nil
}

// SetPool updates the weight and deposit fee of an existing pool. Requires
// Operator. The total allocation weight moves atomically with the change.
func (e *Engine) SetPool(actor common.Address, index int, weight uint64, feeBP uint16, accrueAll bool) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Operator, actor); err != nil {
		return err
	}
	p, err := e.pool(index)
	if err != nil {
		return err
	}
	if feeBP > MaxDepositFeeBP {
		return fmt.Errorf("%w: %d bp", ErrFeeTooHigh, feeBP)
	}

	if accrueAll {
		e.accrueAllPools()
	}

	e.totalAllocWeight = e.totalAllocWeight - p.AllocWeight + weight
	p.AllocWeight = weight
	p.DepositFeeBP = feeBP

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventPoolUpdated, model.PoolUpdatedEvent{
		PoolIndex:    uint64(index),
		AllocWeight:  weight,
		DepositFeeBP: feeBP,
	})
	e.flush(events)
	return nil
}

// Accrue brings one pool's accumulator current. Idempotent within a block.
func (e *Engine) Accrue(index int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	p, err := e.pool(index)
	if err != nil {
		return err
	}
	e.accruePool(p)
	return nil
}

// AccrueAll brings every pool current; used before global parameter changes
// to freeze historical splits.
func (e *Engine) AccrueAll() error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	e.accrueAllPools()
	return nil
}

// Deposit stakes amount into the pool for actor, paying out any pending
// reward first. A zero amount is a pure harvest. referrerHint, when
// non-zero, attempts a one-shot referral binding for the actor.
func (e *Engine) Deposit(actor common.Address, index int, amount *big.Int, referrerHint common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if actor == (common.Address{}) {
		return fmt.Errorf("%w: actor", ErrZeroAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	p, err := e.pool(index)
	if err != nil {
		return err
	}

	e.accruePool(p)
	height := e.blocks.Height()

	// Principal moves first so a failed transfer leaves nothing mutated.
	if amount.Sign() > 0 {
		if err := e.bank.Move(p.Asset, actor, e.params.FarmAccount, amount); err != nil {
			return fmt.Errorf("transfer stake in: %w", err)
		}
	}

	var events []model.EventRecord

	if e.referrals != nil && amount.Sign() > 0 && referrerHint != (common.Address{}) {
		if outcome := e.referrals.Record(actor, referrerHint); outcome == referral.Bound {
			events = e.appendEvent(events, height, actor, model.EventReferralBound, model.ReferralBoundEvent{
				User:     actor.Hex(),
				Referrer: referrerHint.Hex(),
			})
		}
	}

	key := positionKey{pool: index, account: actor}
	pos, ok := e.positions[key]
	if !ok {
		pos = &Position{Staked: new(big.Int), RewardDebt: new(big.Int)}
		e.positions[key] = pos
	}

	if pos.Staked.Sign() > 0 {
		pending, err := pendingFrom(p.AccRewardPerShare, pos)
		if err != nil {
			return err
		}
		events, err = e.payReward(events, height, index, actor, pending)
		if err != nil {
			return err
		}
	}

	fee := new(big.Int)
	if amount.Sign() > 0 {
		if p.DepositFeeBP > 0 {
			fee.Mul(amount, new(big.Int).SetUint64(uint64(p.DepositFeeBP)))
			fee.Div(fee, big.NewInt(bpDenominator))
			if fee.Sign() > 0 {
				if err := e.bank.Move(p.Asset, e.params.FarmAccount, e.params.FeeAddress, fee); err != nil {
					return fmt.Errorf("route deposit fee: %w", err)
				}
			}
		}
		credited := new(big.Int).Sub(amount, fee)
		pos.Staked.Add(pos.Staked, credited)
		p.Staked.Add(p.Staked, credited)
	}

	e.syncDebt(p, pos)

	events = e.appendEvent(events, height, actor, model.EventDeposit, model.DepositEvent{
		User:      actor.Hex(),
		PoolIndex: uint64(index),
		Amount:    amount.String(),
		Fee:       fee.String(),
	})
	e.flush(events)

	e.logger.Debug("deposit",
		zap.String("user", actor.Hex()),
		zap.Int("pool", index),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
	)
	return nil
}

// Withdraw removes amount of principal from the pool for actor, paying out
// any pending reward first.
func (e *Engine) Withdraw(actor common.Address, index int, amount *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	p, err := e.pool(index)
	if err != nil {
		return err
	}
	pos, ok := e.positions[positionKey{pool: index, account: actor}]
	if !ok || pos.Staked.Cmp(amount) < 0 {
		return fmt.Errorf("%w: pool %d account %s", ErrInsufficientStake, index, actor.Hex())
	}

	e.accruePool(p)
	height := e.blocks.Height()

	var events []model.EventRecord
	pending, err := pendingFrom(p.AccRewardPerShare, pos)
	if err != nil {
		return err
	}
	events, err = e.payReward(events, height, index, actor, pending)
	if err != nil {
		return err
	}

	if amount.Sign() > 0 {
		if err := e.bank.Move(p.Asset, e.params.FarmAccount, actor, amount); err != nil {
			return fmt.Errorf("transfer stake out: %w", err)
		}
		pos.Staked.Sub(pos.Staked, amount)
		p.Staked.Sub(p.Staked, amount)
	}

	e.syncDebt(p, pos)

	events = e.appendEvent(events, height, actor, model.EventWithdraw, model.WithdrawEvent{
		User:      actor.Hex(),
		PoolIndex: uint64(index),
		Amount:    amount.String(),
	})
	e.flush(events)

	e.logger.Debug("withdraw",
		zap.String("user", actor.Hex()),
		zap.Int("pool", index),
		zap.String("amount", amount.String()),
	)
	return nil
}

// EmergencyWithdraw returns the actor's full principal without touching the
// reward path. All pending reward is forfeited. This is the escape hatch
// for when the reward path itself is broken.
func (e *Engine) EmergencyWithdraw(actor common.Address, index int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	p, err := e.pool(index)
	if err != nil {
		return err
	}
	pos, ok := e.positions[positionKey{pool: index, account: actor}]
	if !ok || pos.Staked.Sign() == 0 {
		return nil
	}

	// Principal moves before the position is touched so a failed transfer
	// leaves the stake record intact.
	amount := new(big.Int).Set(pos.Staked)
	if err := e.bank.Move(p.Asset, e.params.FarmAccount, actor, amount); err != nil {
		return fmt.Errorf("transfer stake out: %w", err)
	}
	pos.Staked = new(big.Int)
	pos.RewardDebt = new(big.Int)
	p.Staked.Sub(p.Staked, amount)

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventEmergencyWithdraw, model.EmergencyWithdrawEvent{
		User:      actor.Hex(),
		PoolIndex: uint64(index),
		Amount:    amount.String(),
	})
	e.flush(events)

	e.logger.Warn("emergency withdraw",
		zap.String("user", actor.Hex()),
		zap.Int("pool", index),
		zap.String("amount", amount.String()),
	)
	return nil
}

// PendingReward simulates one accrual step without persisting it and
// returns what a real accrue followed by a payout would pay, to the unit.
func (e *Engine) PendingReward(index int, account common.Address) (*big.Int, error) {
	p, err := e.pool(index)
	if err != nil {
		return nil, err
	}
	pos, ok := e.positions[positionKey{pool: index, account: account}]
	if !ok || pos.Staked.Sign() == 0 {
		return new(big.Int), nil
	}

	acc := new(big.Int).Set(p.AccRewardPerShare)
	height := e.blocks.Height()
	if height > p.LastAccrualBlock && p.Staked.Sign() > 0 && p.AllocWeight > 0 && e.totalAllocWeight > 0 {
		mult := e.emissionMultiplier(p.LastAccrualBlock, height)
		if mult.Sign() > 0 {
			reward := new(big.Int).Mul(mult, e.params.EmissionPerBlock)
			reward.Mul(reward, new(big.Int).SetUint64(p.AllocWeight))
			reward.Div(reward, new(big.Int).SetUint64(e.totalAllocWeight))
			delta := new(big.Int).Mul(reward, RewardPrecision)
			delta.Div(delta, p.Staked)
			acc.Add(acc, delta)
		}
	}
	return pendingFrom(acc, pos)
}

func (e *Engine) pool(index int) (*Pool, error) {
	if index < 0 || index >= len(e.pools) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownPool, index)
	}
	return e.pools[index], nil
}

func (e *Engine) requireRole(level roles.Level, actor common.Address) error {
	if !e.auth.HasRole(level, actor) {
		return fmt.Errorf("%w: %s needs %s", roles.ErrUnauthorized, actor.Hex(), level)
	}
	return nil
}

// syncDebt re-derives rewardDebt from the current accumulator. Every
// position mutation must end here.
func (e *Engine) syncDebt(p *Pool, pos *Position) {
	debt := new(big.Int).Mul(pos.Staked, p.AccRewardPerShare)
	pos.RewardDebt = debt.Div(debt, RewardPrecision)
}

// pendingFrom computes staked*acc/1e12 - debt. A negative result means the
// debt invariant was broken at some earlier mutation and is fatal.
func pendingFrom(acc *big.Int, pos *Position) (*big.Int, error) {
	earned := new(big.Int).Mul(pos.Staked, acc)
	earned.Div(earned, RewardPrecision)
	pending := earned.Sub(earned, pos.RewardDebt)
	if pending.Sign() < 0 {
		return nil, ErrDebtInvariant
	}
	return pending, nil
}

// payReward transfers pending reward (capped to the farm's reward balance)
// and triggers the referral commission.
func (e *Engine) payReward(events []model.EventRecord, block uint64, index int, user common.Address, pending *big.Int) ([]model.EventRecord, error) {
	if pending.Sign() <= 0 {
		return events, nil
	}
	paid, err := e.safeRewardTransfer(user, pending)
	if err != nil {
		return events, err
	}
	events = e.appendEvent(events, block, user, model.EventRewardPaid, model.RewardPaidEvent{
		User:      user.Hex(),
		PoolIndex: uint64(index),
		Owed:      pending.String(),
		Paid:      paid.String(),
	})
	return e.payCommission(events, block, user, pending), nil
}

// safeRewardTransfer pays out at most the reward balance held by the farm
// account. Shortfalls are not recorded anywhere: underpayment is preferred
// over blocking withdrawal of principal.
func (e *Engine) safeRewardTransfer(to common.Address, amount *big.Int) (*big.Int, error) {
	balance := e.bank.BalanceOf(e.params.RewardAsset, e.params.FarmAccount)
	pay := new(big.Int).Set(amount)
	if balance.Cmp(pay) < 0 {
		pay.Set(balance)
	}
	if pay.Sign() == 0 {
		return pay, nil
	}
	if err := e.bank.Move(e.params.RewardAsset, e.params.FarmAccount, to, pay); err != nil {
		return nil, fmt.Errorf("transfer reward: %w", err)
	}
	return pay, nil
}

func (e *Engine) appendEvent(events []model.EventRecord, block uint64, actor common.Address, name string, payload interface{}) []model.EventRecord {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("encode event", zap.String("event", name), zap.Error(err))
		return events
	}
	return append(events, model.EventRecord{
		ChainID:     e.params.ChainID,
		BlockNumber: block,
		EventName:   name,
		Actor:       actor.Hex(),
		Decoded:     data,
		EmittedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// flush assigns sequence numbers and appends the buffered events. Events
// are buffered per call so a rejected call journals nothing. A sink failure
// is logged rather than returned: by the time events flush the mutation has
// already been applied, and failing the call would invite the caller to
// retry an operation that did happen.
func (e *Engine) flush(events []model.EventRecord) {
	if len(events) == 0 {
		return
	}
	for i := range events {
		e.nextSeq++
		events[i].Seq = e.nextSeq
	}
	if e.journal == nil {
		return
	}
	if err := e.journal.PutEventBatch(events); err != nil {
		e.logger.Error("append events",
			zap.Int("batch", len(events)),
			zap.Uint64("last_seq", e.nextSeq),
			zap.Error(err),
		)
	}
}
