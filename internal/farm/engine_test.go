package farm

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farmLedger/internal/model"
	"farmLedger/internal/roles"
	"farmLedger/internal/token"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

var (
	adminAddr    = addr(0xA1)
	rewardToken  = addr(0xE0)
	farmVault    = addr(0xF0)
	feeCollector = addr(0xFE)
	lpToken      = addr(0x10)
	alice        = addr(0x01)
	bob          = addr(0x02)
	carol        = addr(0x03)
)

type captureJournal struct {
	events []model.EventRecord
}

func (c *captureJournal) PutEventBatch(batch []model.EventRecord) error {
	c.events = append(c.events, batch...)
	return nil
}

func (c *captureJournal) named(name string) []model.EventRecord {
	var out []model.EventRecord
	for _, ev := range c.events {
		if ev.EventName == name {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	t      *testing.T
	engine *Engine
	bank   *token.Bank
	blocks *ManualBlocks
	sink   *captureJournal
}

func newTestEnv(t *testing.T, params Params) *testEnv {
	t.Helper()

	if params.EmissionPerBlock == nil {
		params.EmissionPerBlock = big.NewInt(10)
	}
	if params.RewardAsset == (common.Address{}) {
		params.RewardAsset = rewardToken
	}
	if params.FarmAccount == (common.Address{}) {
		params.FarmAccount = farmVault
	}
	if params.FeeAddress == (common.Address{}) {
		params.FeeAddress = feeCollector
	}

	bank := token.NewBank()
	blocks := NewManualBlocks(0)
	auth := roles.NewAuthority()
	auth.Bootstrap(adminAddr, roles.Admin)
	sink := &captureJournal{}

	engine, err := NewEngine(params, bank, blocks, auth, sink, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &testEnv{t: t, engine: engine, bank: bank, blocks: blocks, sink: sink}
}

func (env *testEnv) fund(asset, account common.Address, amount int64) {
	env.t.Helper()
	if err := env.bank.Mint(asset, account, big.NewInt(amount)); err != nil {
		env.t.Fatalf("mint %d to %s: %v", amount, account.Hex(), err)
	}
}

func (env *testEnv) addPool(weight uint64, asset common.Address, feeBP uint16) int {
	env.t.Helper()
	index, err := env.engine.AddPool(adminAddr, weight, asset, feeBP, true)
	if err != nil {
		env.t.Fatalf("add pool: %v", err)
	}
	return index
}

func (env *testEnv) deposit(user common.Address, pool int, amount int64) {
	env.t.Helper()
	if err := env.engine.Deposit(user, pool, big.NewInt(amount), common.Address{}); err != nil {
		env.t.Fatalf("deposit %d for %s: %v", amount, user.Hex(), err)
	}
}

func (env *testEnv) pending(pool int, user common.Address) *big.Int {
	env.t.Helper()
	pending, err := env.engine.PendingReward(pool, user)
	if err != nil {
		env.t.Fatalf("pending reward: %v", err)
	}
	return pending
}

func (env *testEnv) rewardBalance(account common.Address) *big.Int {
	return env.bank.BalanceOf(rewardToken, account)
}

func TestAccrualSingleStaker(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 1000)

	env.blocks.SetHeight(20)
	if got := env.pending(pool, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending = %s, want 100", got)
	}

	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	p, err := env.engine.PoolByIndex(pool)
	if err != nil {
		t.Fatalf("pool by index: %v", err)
	}
	wantAcc := big.NewInt(100_000_000_000)
	if p.AccRewardPerShare.Cmp(wantAcc) != 0 {
		t.Fatalf("acc = %s, want %s", p.AccRewardPerShare, wantAcc)
	}

	// Zero-amount deposit is a pure harvest.
	env.deposit(alice, pool, 0)
	if got := env.rewardBalance(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("harvested = %s, want 100", got)
	}
	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending after harvest = %s, want 0", got)
	}
}

func TestAccrueIdempotentWithinBlock(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 500)
	env.deposit(alice, pool, 500)

	env.blocks.SetHeight(5)
	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("first accrue: %v", err)
	}
	first, _ := env.engine.PoolByIndex(pool)

	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("second accrue: %v", err)
	}
	second, _ := env.engine.PoolByIndex(pool)

	if first.AccRewardPerShare.Cmp(second.AccRewardPerShare) != 0 {
		t.Fatalf("accumulator moved within one block: %s then %s",
			first.AccRewardPerShare, second.AccRewardPerShare)
	}
	if minted := env.bank.Minted(rewardToken); minted.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("minted = %s, want 50", minted)
	}
}

func TestDepositFeeSplit(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 400)
	env.fund(lpToken, alice, 1000)

	env.deposit(alice, pool, 1000)

	if got := env.bank.BalanceOf(lpToken, feeCollector); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("fee collected = %s, want 40", got)
	}
	if got := env.bank.BalanceOf(lpToken, farmVault); got.Cmp(big.NewInt(960)) != 0 {
		t.Fatalf("vault principal = %s, want 960", got)
	}
	pos, err := env.engine.PositionOf(pool, alice)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Staked.Cmp(big.NewInt(960)) != 0 {
		t.Fatalf("staked = %s, want 960", pos.Staked)
	}

	deposits := env.sink.named(model.EventDeposit)
	if len(deposits) != 1 {
		t.Fatalf("deposit events = %d, want 1", len(deposits))
	}
	var payload model.DepositEvent
	if err := json.Unmarshal(deposits[0].Decoded, &payload); err != nil {
		t.Fatalf("decode deposit event: %v", err)
	}
	if payload.Amount != "1000" || payload.Fee != "40" {
		t.Fatalf("deposit event amount=%s fee=%s, want 1000/40", payload.Amount, payload.Fee)
	}
}

func TestPendingZeroAfterMutation(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 1000)
	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending right after deposit = %s, want 0", got)
	}

	env.blocks.SetHeight(17)
	if err := env.engine.Withdraw(alice, pool, big.NewInt(400)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending right after withdraw = %s, want 0", got)
	}
}

func TestWithdrawExceedsStake(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 100)
	env.deposit(alice, pool, 100)

	err := env.engine.Withdraw(alice, pool, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("err = %v, want ErrInsufficientStake", err)
	}
	pos, _ := env.engine.PositionOf(pool, alice)
	if pos.Staked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("staked changed on rejected withdraw: %s", pos.Staked)
	}

	if err := env.engine.Withdraw(bob, pool, big.NewInt(1)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("withdraw without position: err = %v, want ErrInsufficientStake", err)
	}
}

func TestEmergencyWithdrawForfeitsReward(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 1000)
	env.blocks.SetHeight(20)

	if err := env.engine.EmergencyWithdraw(alice, pool); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if got := env.bank.BalanceOf(lpToken, alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("principal returned = %s, want 1000", got)
	}
	if got := env.rewardBalance(alice); got.Sign() != 0 {
		t.Fatalf("reward paid on emergency = %s, want 0", got)
	}
	pos, _ := env.engine.PositionOf(pool, alice)
	if pos.Staked.Sign() != 0 || pos.RewardDebt.Sign() != 0 {
		t.Fatalf("position not zeroed: staked=%s debt=%s", pos.Staked, pos.RewardDebt)
	}

	// Repeated call on an empty position is a silent no-op.
	before := len(env.sink.events)
	if err := env.engine.EmergencyWithdraw(alice, pool); err != nil {
		t.Fatalf("repeat emergency withdraw: %v", err)
	}
	if len(env.sink.events) != before {
		t.Fatalf("repeat emergency withdraw journaled events")
	}
}

func TestEmergencyWithdrawKeepsStakeOnTransferFailure(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)
	env.deposit(alice, pool, 1000)

	// Drain the vault so the principal transfer cannot be honored.
	if err := env.bank.Move(lpToken, farmVault, carol, big.NewInt(1000)); err != nil {
		t.Fatalf("drain vault: %v", err)
	}

	err := env.engine.EmergencyWithdraw(alice, pool)
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want token.ErrInsufficientBalance", err)
	}

	// The stake record survives a failed transfer.
	pos, _ := env.engine.PositionOf(pool, alice)
	if pos.Staked.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("staked after failed transfer = %s, want 1000", pos.Staked)
	}
	if events := env.sink.named(model.EventEmergencyWithdraw); len(events) != 0 {
		t.Fatalf("failed emergency withdraw journaled %d events", len(events))
	}
}

// failingJournal rejects every batch.
type failingJournal struct{}

func (failingJournal) PutEventBatch([]model.EventRecord) error {
	return errors.New("sink unavailable")
}

func TestJournalFailureDoesNotRevertState(t *testing.T) {
	bank := token.NewBank()
	blocks := NewManualBlocks(0)
	auth := roles.NewAuthority()
	auth.Bootstrap(adminAddr, roles.Admin)

	engine, err := NewEngine(Params{
		EmissionPerBlock: big.NewInt(10),
		RewardAsset:      rewardToken,
		FarmAccount:      farmVault,
		FeeAddress:       feeCollector,
	}, bank, blocks, auth, failingJournal{}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := engine.AddPool(adminAddr, 100, lpToken, 0, false); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if err := bank.Mint(lpToken, alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// The deposit is applied even though the sink rejects the batch. A
	// retry here would move the principal twice.
	if err := engine.Deposit(alice, 0, big.NewInt(500), common.Address{}); err != nil {
		t.Fatalf("deposit with failing sink: %v", err)
	}
	pos, _ := engine.PositionOf(0, alice)
	if pos.Staked.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("staked = %s, want 500", pos.Staked)
	}
	if got := bank.BalanceOf(lpToken, farmVault); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("vault principal = %s, want 500", got)
	}
}

func TestRewardShortfallPaysBalance(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 1000)
	env.blocks.SetHeight(20)

	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	// Drain most of the minted reward out of the vault.
	if err := env.bank.Move(rewardToken, farmVault, carol, big.NewInt(70)); err != nil {
		t.Fatalf("drain vault: %v", err)
	}

	if err := env.engine.Withdraw(alice, pool, big.NewInt(1000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := env.rewardBalance(alice); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("paid = %s, want 30", got)
	}

	paid := env.sink.named(model.EventRewardPaid)
	if len(paid) != 1 {
		t.Fatalf("reward events = %d, want 1", len(paid))
	}
	var payload model.RewardPaidEvent
	if err := json.Unmarshal(paid[0].Decoded, &payload); err != nil {
		t.Fatalf("decode reward event: %v", err)
	}
	if payload.Owed != "100" || payload.Paid != "30" {
		t.Fatalf("reward event owed=%s paid=%s, want 100/30", payload.Owed, payload.Paid)
	}

	// The shortfall is not banked: nothing more is owed afterwards.
	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending after shortfall payout = %s, want 0", got)
	}
}

func TestMultiUserSplitAndConservation(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 300)
	env.fund(lpToken, bob, 100)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 300)
	env.deposit(bob, pool, 100)

	env.blocks.SetHeight(20)
	if got := env.pending(pool, alice); got.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("alice pending = %s, want 75", got)
	}
	if got := env.pending(pool, bob); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("bob pending = %s, want 25", got)
	}

	env.deposit(alice, pool, 0)
	env.deposit(bob, pool, 0)

	total := new(big.Int).Add(env.rewardBalance(alice), env.rewardBalance(bob))
	total.Add(total, env.rewardBalance(farmVault))
	if minted := env.bank.Minted(rewardToken); total.Cmp(minted) != 0 {
		t.Fatalf("paid+vault = %s, minted = %s", total, minted)
	}
}

func TestZeroWeightPoolAccruesNothing(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(0, lpToken, 0)
	env.fund(lpToken, alice, 1000)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 1000)
	env.blocks.SetHeight(50)

	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending on zero weight pool = %s, want 0", got)
	}
	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	p, _ := env.engine.PoolByIndex(pool)
	if p.LastAccrualBlock != 50 {
		t.Fatalf("last accrual = %d, want 50", p.LastAccrualBlock)
	}

	// Raising the weight later does not resurrect the skipped blocks.
	if err := env.engine.SetPool(adminAddr, pool, 100, 0, true); err != nil {
		t.Fatalf("set pool: %v", err)
	}
	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending after weight raise = %s, want 0", got)
	}
}

func TestSupplyCapFreezesEmission(t *testing.T) {
	env := newTestEnv(t, Params{MaxSupply: big.NewInt(50)})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)
	env.deposit(alice, pool, 1000)

	env.blocks.SetHeight(10)
	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	// The final accrual may overshoot the cap; the cap gates the next one.
	if minted := env.bank.Minted(rewardToken); minted.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("minted = %s, want 100", minted)
	}

	env.blocks.SetHeight(30)
	if got := env.pending(pool, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending past cap = %s, want 100", got)
	}
	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("accrue past cap: %v", err)
	}
	if minted := env.bank.Minted(rewardToken); minted.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("minted past cap = %s, want still 100", minted)
	}
}

func TestStartBlockDefersAccrual(t *testing.T) {
	env := newTestEnv(t, Params{StartBlock: 100})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 1000)

	env.blocks.SetHeight(50)
	if got := env.pending(pool, alice); got.Sign() != 0 {
		t.Fatalf("pending before start block = %s, want 0", got)
	}

	env.blocks.SetHeight(110)
	if got := env.pending(pool, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending after start block = %s, want 100", got)
	}
}

func TestDevShareMintedOnAccrual(t *testing.T) {
	dev := addr(0xD0)
	env := newTestEnv(t, Params{DevAddress: dev})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 1000)
	env.deposit(alice, pool, 1000)

	env.blocks.SetHeight(10)
	if err := env.engine.Accrue(pool); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := env.rewardBalance(dev); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("dev share = %s, want 10", got)
	}
	if minted := env.bank.Minted(rewardToken); minted.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("minted = %s, want 110", minted)
	}
}

func TestPoolRegistrationGuards(t *testing.T) {
	env := newTestEnv(t, Params{})
	env.addPool(100, lpToken, 0)

	if _, err := env.engine.AddPool(adminAddr, 50, lpToken, 0, false); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("duplicate asset: err = %v, want ErrPoolExists", err)
	}
	if _, err := env.engine.AddPool(adminAddr, 50, addr(0x11), MaxDepositFeeBP+1, false); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("fee cap: err = %v, want ErrFeeTooHigh", err)
	}
	if _, err := env.engine.AddPool(adminAddr, 50, common.Address{}, 0, false); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero asset: err = %v, want ErrZeroAddress", err)
	}
	if _, err := env.engine.AddPool(alice, 50, addr(0x11), 0, false); !errors.Is(err, roles.ErrUnauthorized) {
		t.Fatalf("unauthorized: err = %v, want roles.ErrUnauthorized", err)
	}
	if err := env.engine.Deposit(alice, 7, big.NewInt(1), common.Address{}); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("unknown pool: err = %v, want ErrUnknownPool", err)
	}
	if env.engine.PoolCount() != 1 {
		t.Fatalf("pool count = %d, want 1", env.engine.PoolCount())
	}
}

func TestSetPoolMovesTotalWeight(t *testing.T) {
	env := newTestEnv(t, Params{})
	first := env.addPool(100, lpToken, 0)
	env.addPool(300, addr(0x11), 0)

	if err := env.engine.SetPool(adminAddr, first, 50, 100, true); err != nil {
		t.Fatalf("set pool: %v", err)
	}
	if got := env.engine.TotalAllocWeight(); got != 350 {
		t.Fatalf("total weight = %d, want 350", got)
	}
	if err := env.engine.SetPool(adminAddr, first, 50, MaxDepositFeeBP+1, false); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("fee cap on update: err = %v, want ErrFeeTooHigh", err)
	}
}

func TestJournalSequenceMonotonic(t *testing.T) {
	env := newTestEnv(t, Params{})
	pool := env.addPool(100, lpToken, 0)
	env.fund(lpToken, alice, 200)

	env.blocks.SetHeight(10)
	env.deposit(alice, pool, 200)
	env.blocks.SetHeight(20)
	if err := env.engine.Withdraw(alice, pool, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if len(env.sink.events) == 0 {
		t.Fatal("no events journaled")
	}
	for i, ev := range env.sink.events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
	}
}

// reentrantBank re-enters the engine once from inside a transfer.
type reentrantBank struct {
	*token.Bank
	engine *Engine
	fired  bool
	inner  error
}

func (b *reentrantBank) Move(asset, from, to common.Address, amount *big.Int) error {
	if !b.fired {
		b.fired = true
		b.inner = b.engine.Deposit(from, 0, big.NewInt(1), common.Address{})
	}
	return b.Bank.Move(asset, from, to, amount)
}

func TestReentrantCallRejected(t *testing.T) {
	rb := &reentrantBank{Bank: token.NewBank()}
	blocks := NewManualBlocks(0)
	auth := roles.NewAuthority()
	auth.Bootstrap(adminAddr, roles.Admin)

	engine, err := NewEngine(Params{
		EmissionPerBlock: big.NewInt(10),
		RewardAsset:      rewardToken,
		FarmAccount:      farmVault,
		FeeAddress:       feeCollector,
	}, rb, blocks, auth, &captureJournal{}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	rb.engine = engine

	if _, err := engine.AddPool(adminAddr, 100, lpToken, 0, false); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if err := rb.Bank.Mint(lpToken, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := engine.Deposit(alice, 0, big.NewInt(100), common.Address{}); err != nil {
		t.Fatalf("outer deposit: %v", err)
	}
	if !rb.fired {
		t.Fatal("re-entry never attempted")
	}
	if !errors.Is(rb.inner, ErrReentrantCall) {
		t.Fatalf("inner err = %v, want ErrReentrantCall", rb.inner)
	}
}
