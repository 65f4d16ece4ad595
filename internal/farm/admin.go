package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmLedger/internal/model"
	"farmLedger/internal/referral"
	"farmLedger/internal/roles"
)

// SetDevAddress changes the dev share recipient. Requires Admin.
func (e *Engine) SetDevAddress(actor, addr common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Admin, actor); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: dev address", ErrZeroAddress)
	}
	e.params.DevAddress = addr

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventDevAddressUpdated, model.DevAddressUpdatedEvent{
		DevAddress: addr.Hex(),
	})
	e.flush(events)
	return nil
}

// SetFeeAddress changes the deposit fee collector. Requires Admin.
func (e *Engine) SetFeeAddress(actor, addr common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Admin, actor); err != nil {
		return err
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: fee address", ErrZeroAddress)
	}
	e.params.FeeAddress = addr

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventFeeAddressUpdated, model.FeeAddressUpdatedEvent{
		FeeAddress: addr.Hex(),
	})
	e.flush(events)
	return nil
}

// UpdateEmissionRate changes the per-block emission. Requires Admin. All
// pools are accrued first so the new rate applies only from this block on.
func (e *Engine) UpdateEmissionRate(actor common.Address, emission *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Admin, actor); err != nil {
		return err
	}
	if emission == nil || emission.Sign() < 0 {
		return ErrInvalidAmount
	}

	e.accrueAllPools()
	e.params.EmissionPerBlock = new(big.Int).Set(emission)

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventEmissionRateUpdated, model.EmissionRateUpdatedEvent{
		EmissionPerBlock: emission.String(),
	})
	e.flush(events)
	return nil
}

// UpdateMaxSupply changes the reward supply cap. Requires Admin. Zero
// disables the cap.
func (e *Engine) UpdateMaxSupply(actor common.Address, maxSupply *big.Int) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Admin, actor); err != nil {
		return err
	}
	if maxSupply == nil || maxSupply.Sign() < 0 {
		return ErrInvalidAmount
	}

	e.accrueAllPools()
	e.params.MaxSupply = new(big.Int).Set(maxSupply)

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventMaxSupplyUpdated, model.MaxSupplyUpdatedEvent{
		MaxSupply: maxSupply.String(),
	})
	e.flush(events)
	return nil
}

// WireReferralLedger attaches the ledger without journaling anything. This
// is the host wiring path, used at genesis and after restoring a snapshot.
// The journaled admin path is SetReferralLedger.
func (e *Engine) WireReferralLedger(ledger *referral.Ledger) {
	e.referrals = ledger
}

// SetReferralLedger wires (or unwires, with nil) the referral ledger.
// Requires Admin.
func (e *Engine) SetReferralLedger(actor common.Address, ledger *referral.Ledger) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Admin, actor); err != nil {
		return err
	}
	e.referrals = ledger

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventReferralLedgerUpdated, model.ReferralLedgerUpdatedEvent{
		Enabled: ledger != nil,
	})
	e.flush(events)
	return nil
}

// UpdateReferralBonusBP changes the referral commission rate. Requires Admin.
func (e *Engine) UpdateReferralBonusBP(actor common.Address, bonusBP uint16) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Admin, actor); err != nil {
		return err
	}
	if bonusBP > MaxReferralBonusBP {
		return fmt.Errorf("%w: %d bp", ErrBonusTooHigh, bonusBP)
	}
	e.params.ReferralBonusBP = bonusBP

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventReferralBonusUpdated, model.ReferralBonusUpdatedEvent{
		BonusBP: bonusBP,
	})
	e.flush(events)
	return nil
}

// AddReferral is the administrative binding path. Requires Operator. The
// same silent no-op guards apply as on the deposit path; the outcome tells
// the caller which branch was taken.
func (e *Engine) AddReferral(actor, user, referrer common.Address) (referral.Outcome, error) {
	if err := e.guard.enter(); err != nil {
		return referral.Rejected, err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Operator, actor); err != nil {
		return referral.Rejected, err
	}
	if e.referrals == nil {
		return referral.Rejected, ErrNoReferralLedger
	}

	outcome := e.referrals.Add(user, referrer)
	if outcome != referral.Bound {
		return outcome, nil
	}

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventReferralBound, model.ReferralBoundEvent{
		User:     user.Hex(),
		Referrer: referrer.Hex(),
	})
	e.flush(events)
	return outcome, nil
}

// RemoveReferral clears a user's binding. Requires Operator. Returns the
// referrer that was removed, or the zero address if none was bound.
func (e *Engine) RemoveReferral(actor, user common.Address) (common.Address, error) {
	if err := e.guard.enter(); err != nil {
		return common.Address{}, err
	}
	defer e.guard.leave()

	if err := e.requireRole(roles.Operator, actor); err != nil {
		return common.Address{}, err
	}
	if e.referrals == nil {
		return common.Address{}, ErrNoReferralLedger
	}

	removed := e.referrals.Remove(user)
	if removed == (common.Address{}) {
		return removed, nil
	}

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventReferralRemoved, model.ReferralRemovedEvent{
		User:     user.Hex(),
		Referrer: removed.Hex(),
	})
	e.flush(events)
	return removed, nil
}

// GrantRole assigns a role level through the ledger, journaling the change.
func (e *Engine) GrantRole(actor common.Address, level roles.Level, target common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.auth.GrantRole(actor, level, target); err != nil {
		return err
	}

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventRoleGranted, model.RoleGrantedEvent{
		Account: target.Hex(),
		Level:   level.String(),
	})
	e.flush(events)
	return nil
}

// RevokeRole removes a role level through the ledger, journaling the change.
func (e *Engine) RevokeRole(actor common.Address, level roles.Level, target common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	if err := e.auth.RevokeRole(actor, level, target); err != nil {
		return err
	}

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventRoleRevoked, model.RoleRevokedEvent{
		Account: target.Hex(),
		Level:   level.String(),
	})
	e.flush(events)
	return nil
}

// RenounceRole drops the actor's own role unconditionally.
func (e *Engine) RenounceRole(actor common.Address) error {
	if err := e.guard.enter(); err != nil {
		return err
	}
	defer e.guard.leave()

	level := e.auth.RenounceRole(actor)
	if level == roles.None {
		return nil
	}

	events := e.appendEvent(nil, e.blocks.Height(), actor, model.EventRoleRenounced, model.RoleRenouncedEvent{
		Account: actor.Hex(),
		Level:   level.String(),
	})
	e.flush(events)
	return nil
}
