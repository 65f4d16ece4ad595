package roles

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// State is the JSON-friendly snapshot form of an Authority.
type State struct {
	Assignments []Assignment `json:"assignments"`
}

// Assignment is one account role entry.
type Assignment struct {
	Account string `json:"account"`
	Level   string `json:"level"`
}

// Export captures all assignments in deterministic order.
func (a *Authority) Export() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	state := State{}
	for account, level := range a.levels {
		if level == None {
			continue
		}
		state.Assignments = append(state.Assignments, Assignment{
			Account: account.Hex(),
			Level:   level.String(),
		})
	}
	sort.Slice(state.Assignments, func(i, j int) bool {
		return state.Assignments[i].Account < state.Assignments[j].Account
	})
	return state
}

// Restore replaces all assignments with a previously exported state.
func (a *Authority) Restore(state State) error {
	levels := make(map[common.Address]Level, len(state.Assignments))
	for _, entry := range state.Assignments {
		if !common.IsHexAddress(entry.Account) {
			return fmt.Errorf("roles: invalid account %s", entry.Account)
		}
		level, err := ParseLevel(entry.Level)
		if err != nil {
			return err
		}
		if level == None {
			continue
		}
		levels[common.HexToAddress(entry.Account)] = level
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels = levels
	return nil
}
