package farm

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// State is the JSON-friendly snapshot form of an Engine. Exports are
// deterministic so snapshot files diff cleanly between runs.
type State struct {
	ChainID          uint64          `json:"chain_id"`
	EmissionPerBlock string          `json:"emission_per_block"`
	BonusMultiplier  uint64          `json:"bonus_multiplier"`
	StartBlock       uint64          `json:"start_block"`
	MaxSupply        string          `json:"max_supply,omitempty"`
	RewardAsset      string          `json:"reward_asset"`
	FarmAccount      string          `json:"farm_account"`
	DevAddress       string          `json:"dev_address,omitempty"`
	FeeAddress       string          `json:"fee_address,omitempty"`
	ReferralBonusBP  uint16          `json:"referral_bonus_bp,omitempty"`
	NextSeq          uint64          `json:"next_seq"`
	Pools            []PoolState     `json:"pools"`
	Positions        []PositionState `json:"positions"`
}

// PoolState is the snapshot form of one pool. Slice order is the pool index.
type PoolState struct {
	Asset             string `json:"asset"`
	AllocWeight       uint64 `json:"alloc_weight"`
	LastAccrualBlock  uint64 `json:"last_accrual_block"`
	AccRewardPerShare string `json:"acc_reward_per_share"`
	DepositFeeBP      uint16 `json:"deposit_fee_bp"`
	Staked            string `json:"staked"`
}

// PositionState is the snapshot form of one account's stake in one pool.
type PositionState struct {
	Pool       int    `json:"pool"`
	Account    string `json:"account"`
	Staked     string `json:"staked"`
	RewardDebt string `json:"reward_debt"`
}

// Export captures the full engine state in deterministic order.
func (e *Engine) Export() State {
	state := State{
		ChainID:          e.params.ChainID,
		EmissionPerBlock: e.params.EmissionPerBlock.String(),
		BonusMultiplier:  e.params.BonusMultiplier,
		StartBlock:       e.params.StartBlock,
		RewardAsset:      e.params.RewardAsset.Hex(),
		FarmAccount:      e.params.FarmAccount.Hex(),
		ReferralBonusBP:  e.params.ReferralBonusBP,
		NextSeq:          e.nextSeq,
	}
	if e.params.MaxSupply != nil && e.params.MaxSupply.Sign() > 0 {
		state.MaxSupply = e.params.MaxSupply.String()
	}
	if e.params.DevAddress != (common.Address{}) {
		state.DevAddress = e.params.DevAddress.Hex()
	}
	if e.params.FeeAddress != (common.Address{}) {
		state.FeeAddress = e.params.FeeAddress.Hex()
	}

	for _, p := range e.pools {
		state.Pools = append(state.Pools, PoolState{
			Asset:             p.Asset.Hex(),
			AllocWeight:       p.AllocWeight,
			LastAccrualBlock:  p.LastAccrualBlock,
			AccRewardPerShare: p.AccRewardPerShare.String(),
			DepositFeeBP:      p.DepositFeeBP,
			Staked:            p.Staked.String(),
		})
	}

	for key, pos := range e.positions {
		if pos.Staked.Sign() == 0 && pos.RewardDebt.Sign() == 0 {
			continue
		}
		state.Positions = append(state.Positions, PositionState{
			Pool:       key.pool,
			Account:    key.account.Hex(),
			Staked:     pos.Staked.String(),
			RewardDebt: pos.RewardDebt.String(),
		})
	}
	sort.Slice(state.Positions, func(i, j int) bool {
		if state.Positions[i].Pool != state.Positions[j].Pool {
			return state.Positions[i].Pool < state.Positions[j].Pool
		}
		return state.Positions[i].Account < state.Positions[j].Account
	})

	return state
}

// Restore replaces the engine state with a previously exported snapshot.
// The wired bank, block source, authority, and journal are untouched.
func (e *Engine) Restore(state State) error {
	emission, err := parseBigInt(state.EmissionPerBlock, "emission_per_block")
	if err != nil {
		return err
	}
	var maxSupply *big.Int
	if state.MaxSupply != "" {
		if maxSupply, err = parseBigInt(state.MaxSupply, "max_supply"); err != nil {
			return err
		}
	}
	if !common.IsHexAddress(state.RewardAsset) {
		return fmt.Errorf("farm: invalid reward asset %q", state.RewardAsset)
	}
	if !common.IsHexAddress(state.FarmAccount) {
		return fmt.Errorf("farm: invalid farm account %q", state.FarmAccount)
	}
	if state.ReferralBonusBP > MaxReferralBonusBP {
		return fmt.Errorf("%w: %d bp", ErrBonusTooHigh, state.ReferralBonusBP)
	}

	params := Params{
		ChainID:          state.ChainID,
		EmissionPerBlock: emission,
		BonusMultiplier:  state.BonusMultiplier,
		StartBlock:       state.StartBlock,
		MaxSupply:        maxSupply,
		RewardAsset:      common.HexToAddress(state.RewardAsset),
		FarmAccount:      common.HexToAddress(state.FarmAccount),
		ReferralBonusBP:  state.ReferralBonusBP,
	}
	if params.BonusMultiplier == 0 {
		params.BonusMultiplier = 1
	}
	if state.DevAddress != "" {
		if !common.IsHexAddress(state.DevAddress) {
			return fmt.Errorf("farm: invalid dev address %q", state.DevAddress)
		}
		params.DevAddress = common.HexToAddress(state.DevAddress)
	}
	if state.FeeAddress != "" {
		if !common.IsHexAddress(state.FeeAddress) {
			return fmt.Errorf("farm: invalid fee address %q", state.FeeAddress)
		}
		params.FeeAddress = common.HexToAddress(state.FeeAddress)
	}

	pools := make([]*Pool, 0, len(state.Pools))
	poolByAsset := make(map[common.Address]int, len(state.Pools))
	var totalWeight uint64
	for i, entry := range state.Pools {
		if !common.IsHexAddress(entry.Asset) {
			return fmt.Errorf("farm: pool %d invalid asset %q", i, entry.Asset)
		}
		asset := common.HexToAddress(entry.Asset)
		if _, exists := poolByAsset[asset]; exists {
			return fmt.Errorf("%w: %s", ErrPoolExists, asset.Hex())
		}
		acc, err := parseBigInt(entry.AccRewardPerShare, "acc_reward_per_share")
		if err != nil {
			return fmt.Errorf("farm: pool %d: %w", i, err)
		}
		staked, err := parseBigInt(entry.Staked, "staked")
		if err != nil {
			return fmt.Errorf("farm: pool %d: %w", i, err)
		}
		pools = append(pools, &Pool{
			Asset:             asset,
			AllocWeight:       entry.AllocWeight,
			LastAccrualBlock:  entry.LastAccrualBlock,
			AccRewardPerShare: acc,
			DepositFeeBP:      entry.DepositFeeBP,
			Staked:            staked,
		})
		poolByAsset[asset] = i
		totalWeight += entry.AllocWeight
	}

	positions := make(map[positionKey]*Position, len(state.Positions))
	for _, entry := range state.Positions {
		if entry.Pool < 0 || entry.Pool >= len(pools) {
			return fmt.Errorf("%w: index %d", ErrUnknownPool, entry.Pool)
		}
		if !common.IsHexAddress(entry.Account) {
			return fmt.Errorf("farm: invalid position account %q", entry.Account)
		}
		staked, err := parseBigInt(entry.Staked, "staked")
		if err != nil {
			return err
		}
		debt, err := parseBigInt(entry.RewardDebt, "reward_debt")
		if err != nil {
			return err
		}
		positions[positionKey{pool: entry.Pool, account: common.HexToAddress(entry.Account)}] = &Position{
			Staked:     staked,
			RewardDebt: debt,
		}
	}

	e.params = params
	e.pools = pools
	e.poolByAsset = poolByAsset
	e.positions = positions
	e.totalAllocWeight = totalWeight
	e.nextSeq = state.NextSeq
	return nil
}

func parseBigInt(value, field string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("farm: invalid %s %q", field, value)
	}
	return parsed, nil
}
