package referral

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// State is the JSON-friendly snapshot form of a Ledger.
type State struct {
	Bindings []Binding `json:"bindings"`
}

// Binding is one user->referrer entry.
type Binding struct {
	User     string `json:"user"`
	Referrer string `json:"referrer"`
}

// Export captures all bindings in deterministic order. Counters are derived
// from the bindings on restore.
func (l *Ledger) Export() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state := State{}
	for user, referrer := range l.referrers {
		state.Bindings = append(state.Bindings, Binding{
			User:     user.Hex(),
			Referrer: referrer.Hex(),
		})
	}
	sort.Slice(state.Bindings, func(i, j int) bool {
		return state.Bindings[i].User < state.Bindings[j].User
	})
	return state
}

// Restore replaces all bindings with a previously exported state.
func (l *Ledger) Restore(state State) error {
	referrers := make(map[common.Address]common.Address, len(state.Bindings))
	counts := make(map[common.Address]uint64)
	for _, entry := range state.Bindings {
		if !common.IsHexAddress(entry.User) || !common.IsHexAddress(entry.Referrer) {
			return fmt.Errorf("referral: invalid binding %s -> %s", entry.User, entry.Referrer)
		}
		user := common.HexToAddress(entry.User)
		referrer := common.HexToAddress(entry.Referrer)
		referrers[user] = referrer
		counts[referrer]++
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.referrers = referrers
	l.counts = counts
	return nil
}
