package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmLedger/internal/model"
)

// payCommission mints pending*bonusBP/10000 of the reward asset to the
// user's referrer as a side payment. It is additional emission, never
// deducted from the user's own payout, and the absence of a referrer is
// the common case rather than an error: this path never fails the
// surrounding deposit or withdrawal.
func (e *Engine) payCommission(events []model.EventRecord, block uint64, user common.Address, pending *big.Int) []model.EventRecord {
	if e.referrals == nil || e.params.ReferralBonusBP == 0 || pending.Sign() <= 0 {
		return events
	}

	referrer := e.referrals.Referrer(user)
	if referrer == (common.Address{}) || referrer == user {
		return events
	}

	bonus := new(big.Int).Mul(pending, new(big.Int).SetUint64(uint64(e.params.ReferralBonusBP)))
	bonus.Div(bonus, big.NewInt(bpDenominator))
	if bonus.Sign() == 0 {
		return events
	}

	if err := e.bank.Mint(e.params.RewardAsset, referrer, bonus); err != nil {
		e.logger.Warn("mint commission",
			zap.Error(err),
			zap.String("user", user.Hex()),
			zap.String("referrer", referrer.Hex()),
		)
		return events
	}

	return e.appendEvent(events, block, user, model.EventCommissionPaid, model.CommissionPaidEvent{
		User:     user.Hex(),
		Referrer: referrer.Hex(),
		Amount:   bonus.String(),
	})
}
