package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// accruePool advances the pool accumulator to the current height. Blocks
// spent with no stake or no weight accumulate nothing and are permanently
// forfeited, not banked for later.
func (e *Engine) accruePool(p *Pool) {
	height := e.blocks.Height()
	if height <= p.LastAccrualBlock {
		return
	}
	if p.Staked.Sign() == 0 || p.AllocWeight == 0 || e.totalAllocWeight == 0 {
		p.LastAccrualBlock = height
		return
	}

	mult := e.emissionMultiplier(p.LastAccrualBlock, height)
	if mult.Sign() == 0 {
		p.LastAccrualBlock = height
		return
	}

	// Multiply everything before dividing to keep truncation loss minimal.
	reward := new(big.Int).Mul(mult, e.params.EmissionPerBlock)
	reward.Mul(reward, new(big.Int).SetUint64(p.AllocWeight))
	reward.Div(reward, new(big.Int).SetUint64(e.totalAllocWeight))

	if reward.Sign() > 0 {
		e.mintEmission(reward)
		delta := new(big.Int).Mul(reward, RewardPrecision)
		delta.Div(delta, p.Staked)
		p.AccRewardPerShare.Add(p.AccRewardPerShare, delta)
	}
	p.LastAccrualBlock = height
}

func (e *Engine) accrueAllPools() {
	for _, p := range e.pools {
		e.accruePool(p)
	}
}

// emissionMultiplier returns (to-from)*bonus, or zero once the minted
// reward supply has reached the configured cap. The cap is the global kill
// switch for accrual.
func (e *Engine) emissionMultiplier(from, to uint64) *big.Int {
	if e.supplyCapReached() {
		return new(big.Int)
	}
	mult := new(big.Int).SetUint64(to - from)
	return mult.Mul(mult, new(big.Int).SetUint64(e.params.BonusMultiplier))
}

func (e *Engine) supplyCapReached() bool {
	if e.params.MaxSupply == nil || e.params.MaxSupply.Sign() == 0 {
		return false
	}
	return e.bank.Minted(e.params.RewardAsset).Cmp(e.params.MaxSupply) >= 0
}

// mintEmission mints the block reward into the farm account, plus the dev
// share when a dev address is set. The dev share is additional emission on
// top of the pool reward, not a slice of it.
func (e *Engine) mintEmission(reward *big.Int) {
	if e.params.DevAddress != (common.Address{}) {
		devShare := new(big.Int).Div(reward, big.NewInt(devShareDivisor))
		if devShare.Sign() > 0 {
			if err := e.bank.Mint(e.params.RewardAsset, e.params.DevAddress, devShare); err != nil {
				e.logger.Warn("mint dev share", zap.Error(err))
			}
		}
	}
	if err := e.bank.Mint(e.params.RewardAsset, e.params.FarmAccount, reward); err != nil {
		e.logger.Warn("mint emission", zap.Error(err))
	}
}
