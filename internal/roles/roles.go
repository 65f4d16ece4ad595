package roles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Level is an ordered role level. Higher levels dominate lower ones, so a
// check for Operator is satisfied by an Admin assignment.
type Level uint8

const (
	None Level = iota
	Operator
	Admin
)

// Sentinel errors for role mutations.
var (
	ErrUnauthorized   = errors.New("roles: caller level insufficient")
	ErrAlreadyGranted = errors.New("roles: target already holds role")
	ErrNotGranted     = errors.New("roles: target does not hold role")
	ErrInvalidLevel   = errors.New("roles: invalid level")
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Operator:
		return "operator"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// ParseLevel converts a level name into a Level.
func ParseLevel(input string) (Level, error) {
	switch input {
	case "none":
		return None, nil
	case "operator":
		return Operator, nil
	case "admin":
		return Admin, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrInvalidLevel, input)
	}
}

// Authority maps accounts to role levels and enforces the grant hierarchy:
// a caller must hold at least Operator and may never grant or revoke a
// level above their own.
type Authority struct {
	mu     sync.RWMutex
	levels map[common.Address]Level
}

func NewAuthority() *Authority {
	return &Authority{levels: make(map[common.Address]Level)}
}

// Bootstrap assigns a level without permission checks. Used only for
// genesis wiring before the authority is handed to the ledger.
func (a *Authority) Bootstrap(account common.Address, level Level) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if level == None {
		delete(a.levels, account)
		return
	}
	a.levels[account] = level
}

// HasRole reports whether account holds at least level.
func (a *Authority) HasRole(level Level, account common.Address) bool {
	if level == None {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.levels[account] >= level
}

// LevelOf returns the exact level assigned to account.
func (a *Authority) LevelOf(account common.Address) Level {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.levels[account]
}

// GrantRole assigns level to target. The caller must hold at least Operator
// and at least the level being granted. A target already at or above the
// granted level is rejected: a grant never lowers an assignment, so demotion
// always goes through RevokeRole first.
func (a *Authority) GrantRole(caller common.Address, level Level, target common.Address) error {
	if level == None || level > Admin {
		return fmt.Errorf("%w: %s", ErrInvalidLevel, level)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	callerLevel := a.levels[caller]
	if callerLevel < Operator || callerLevel < level {
		return fmt.Errorf("%w: caller %s holds %s, granting %s", ErrUnauthorized, caller.Hex(), callerLevel, level)
	}
	if held := a.levels[target]; held >= level {
		return fmt.Errorf("%w: %s already %s", ErrAlreadyGranted, target.Hex(), held)
	}
	a.levels[target] = level
	return nil
}

// RevokeRole removes level from target. The caller must hold at least
// Operator and at least the level being revoked; the target must hold
// exactly that level.
func (a *Authority) RevokeRole(caller common.Address, level Level, target common.Address) error {
	if level == None || level > Admin {
		return fmt.Errorf("%w: %s", ErrInvalidLevel, level)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	callerLevel := a.levels[caller]
	if callerLevel < Operator || callerLevel < level {
		return fmt.Errorf("%w: caller %s holds %s, revoking %s", ErrUnauthorized, caller.Hex(), callerLevel, level)
	}
	if a.levels[target] != level {
		return fmt.Errorf("%w: %s does not hold %s", ErrNotGranted, target.Hex(), level)
	}
	delete(a.levels, target)
	return nil
}

// RenounceRole drops the caller's own assignment unconditionally and
// returns the level that was held.
func (a *Authority) RenounceRole(caller common.Address) Level {
	a.mu.Lock()
	defer a.mu.Unlock()

	level := a.levels[caller]
	delete(a.levels, caller)
	return level
}
