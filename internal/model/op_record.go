package model

// Operation kinds accepted by the replay runner.
const (
	OpAddPool             = "add_pool"
	OpSetPool             = "set_pool"
	OpAccrue              = "accrue"
	OpAccrueAll           = "accrue_all"
	OpDeposit             = "deposit"
	OpWithdraw            = "withdraw"
	OpEmergencyWithdraw   = "emergency_withdraw"
	OpMint                = "mint"
	OpGrantRole           = "grant_role"
	OpRevokeRole          = "revoke_role"
	OpRenounceRole        = "renounce_role"
	OpAddReferral         = "add_referral"
	OpRemoveReferral      = "remove_referral"
	OpSetDevAddress       = "set_dev_address"
	OpSetFeeAddress       = "set_fee_address"
	OpUpdateEmissionRate  = "update_emission_rate"
	OpUpdateMaxSupply     = "update_max_supply"
	OpUpdateReferralBonus = "update_referral_bonus"
)

// OpRecord is one recorded ledger operation in the ops journal. Unused
// fields are omitted per kind; the runner validates what each kind needs.
type OpRecord struct {
	Seq         uint64 `json:"seq"`
	Kind        string `json:"kind"`
	Actor       string `json:"actor"`
	BlockNumber uint64 `json:"block_number"`
	Pool        uint64 `json:"pool,omitempty"`
	Asset       string `json:"asset,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Weight      uint64 `json:"weight,omitempty"`
	FeeBP       uint16 `json:"fee_bp,omitempty"`
	AccrueAll   bool   `json:"accrue_all,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	Target      string `json:"target,omitempty"`
	Level       string `json:"level,omitempty"`
	Address     string `json:"address,omitempty"`
	Value       string `json:"value,omitempty"`
	BonusBP     uint16 `json:"bonus_bp,omitempty"`
}
