package model

// Event names appearing in the journal. Field order and naming of the
// payloads below are part of the compatibility surface for off-ledger
// consumers.
const (
	EventPoolAdded             = "pool_added"
	EventPoolUpdated           = "pool_updated"
	EventDeposit               = "deposit"
	EventWithdraw              = "withdraw"
	EventEmergencyWithdraw     = "emergency_withdraw"
	EventRewardPaid            = "reward_paid"
	EventCommissionPaid        = "commission_paid"
	EventReferralBound         = "referral_bound"
	EventReferralRemoved       = "referral_removed"
	EventEmissionRateUpdated   = "emission_rate_updated"
	EventMaxSupplyUpdated      = "max_supply_updated"
	EventDevAddressUpdated     = "dev_address_updated"
	EventFeeAddressUpdated     = "fee_address_updated"
	EventReferralBonusUpdated  = "referral_bonus_updated"
	EventReferralLedgerUpdated = "referral_ledger_updated"
	EventRoleGranted           = "role_granted"
	EventRoleRevoked           = "role_revoked"
	EventRoleRenounced         = "role_renounced"
)

// PoolAddedEvent is emitted when a new staking pool is registered.
type PoolAddedEvent struct {
	PoolIndex    uint64 `json:"pool_index"`
	Asset        string `json:"asset"`
	AllocWeight  uint64 `json:"alloc_weight"`
	DepositFeeBP uint16 `json:"deposit_fee_bp"`
}

// PoolUpdatedEvent is emitted when pool weight or fee changes.
type PoolUpdatedEvent struct {
	PoolIndex    uint64 `json:"pool_index"`
	AllocWeight  uint64 `json:"alloc_weight"`
	DepositFeeBP uint16 `json:"deposit_fee_bp"`
}

// DepositEvent is emitted after a successful deposit.
type DepositEvent struct {
	User      string `json:"user"`
	PoolIndex uint64 `json:"pool_index"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
}

// WithdrawEvent is emitted after a successful withdrawal.
type WithdrawEvent struct {
	User      string `json:"user"`
	PoolIndex uint64 `json:"pool_index"`
	Amount    string `json:"amount"`
}

// EmergencyWithdrawEvent is emitted when a position exits forfeiting reward.
type EmergencyWithdrawEvent struct {
	User      string `json:"user"`
	PoolIndex uint64 `json:"pool_index"`
	Amount    string `json:"amount"`
}

// RewardPaidEvent records a reward payout. Paid may be lower than Owed when
// the reward balance held by the farm falls short.
type RewardPaidEvent struct {
	User      string `json:"user"`
	PoolIndex uint64 `json:"pool_index"`
	Owed      string `json:"owed"`
	Paid      string `json:"paid"`
}

// CommissionPaidEvent records a referral commission side payment.
type CommissionPaidEvent struct {
	User     string `json:"user"`
	Referrer string `json:"referrer"`
	Amount   string `json:"amount"`
}

// ReferralBoundEvent records a one-shot user->referrer binding.
type ReferralBoundEvent struct {
	User     string `json:"user"`
	Referrer string `json:"referrer"`
}

// ReferralRemovedEvent records an administrative unbinding.
type ReferralRemovedEvent struct {
	User     string `json:"user"`
	Referrer string `json:"referrer"`
}

// EmissionRateUpdatedEvent records a change of the per-block emission.
type EmissionRateUpdatedEvent struct {
	EmissionPerBlock string `json:"emission_per_block"`
}

// MaxSupplyUpdatedEvent records a change of the reward supply cap.
type MaxSupplyUpdatedEvent struct {
	MaxSupply string `json:"max_supply"`
}

// DevAddressUpdatedEvent records a change of the dev share recipient.
type DevAddressUpdatedEvent struct {
	DevAddress string `json:"dev_address"`
}

// FeeAddressUpdatedEvent records a change of the deposit fee collector.
type FeeAddressUpdatedEvent struct {
	FeeAddress string `json:"fee_address"`
}

// ReferralBonusUpdatedEvent records a change of the referral bonus rate.
type ReferralBonusUpdatedEvent struct {
	BonusBP uint16 `json:"bonus_bp"`
}

// ReferralLedgerUpdatedEvent records wiring or unwiring of the referral ledger.
type ReferralLedgerUpdatedEvent struct {
	Enabled bool `json:"enabled"`
}

// RoleGrantedEvent records a role assignment.
type RoleGrantedEvent struct {
	Account string `json:"account"`
	Level   string `json:"level"`
}

// RoleRevokedEvent records a role removal.
type RoleRevokedEvent struct {
	Account string `json:"account"`
	Level   string `json:"level"`
}

// RoleRenouncedEvent records an account dropping its own role.
type RoleRenouncedEvent struct {
	Account string `json:"account"`
	Level   string `json:"level"`
}
