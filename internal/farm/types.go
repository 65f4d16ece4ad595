package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxDepositFeeBP caps per-pool deposit fees at 10%.
	MaxDepositFeeBP uint16 = 1000
	// MaxReferralBonusBP caps the referral commission rate at 10%.
	MaxReferralBonusBP uint16 = 1000

	bpDenominator   = 10_000
	devShareDivisor = 10
)

// RewardPrecision is the fixed-point scale for AccRewardPerShare.
var RewardPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

// Pool is one registered staking venue. Pools are appended once and never
// deleted; their index is stable for the lifetime of the ledger.
type Pool struct {
	Asset             common.Address
	AllocWeight       uint64
	LastAccrualBlock  uint64
	AccRewardPerShare *big.Int
	DepositFeeBP      uint16
	Staked            *big.Int
}

// Position tracks one account's stake in one pool. RewardDebt always equals
// Staked * AccRewardPerShare / RewardPrecision immediately after a mutation,
// which makes pending reward a pure function of current state.
type Position struct {
	Staked     *big.Int
	RewardDebt *big.Int
}

type positionKey struct {
	pool    int
	account common.Address
}
