package referral

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome reports what a binding attempt did. Rejected and AlreadyBound are
// silent no-ops, not failures: callers must not assume a write occurred.
type Outcome int

const (
	Bound Outcome = iota
	AlreadyBound
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Bound:
		return "bound"
	case AlreadyBound:
		return "already_bound"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var zeroAddr = common.Address{}

// Ledger holds write-once user->referrer bindings plus per-referrer counters.
type Ledger struct {
	mu        sync.RWMutex
	referrers map[common.Address]common.Address
	counts    map[common.Address]uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		referrers: make(map[common.Address]common.Address),
		counts:    make(map[common.Address]uint64),
	}
}

// Record binds user to referrer if user is unbound and the pair passes the
// guards: both non-zero, no self-referral.
func (l *Ledger) Record(user, referrer common.Address) Outcome {
	if user == zeroAddr || referrer == zeroAddr || user == referrer {
		return Rejected
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.referrers[user]; exists {
		return AlreadyBound
	}
	l.referrers[user] = referrer
	l.counts[referrer]++
	return Bound
}

// Referrer returns the referrer bound to user, or the zero address when
// unbound.
func (l *Ledger) Referrer(user common.Address) common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.referrers[user]
}

// ReferralCount returns how many users are currently bound to referrer.
func (l *Ledger) ReferralCount(referrer common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[referrer]
}

// Add is the administrative binding path. Same guards as Record.
func (l *Ledger) Add(user, referrer common.Address) Outcome {
	return l.Record(user, referrer)
}

// Remove clears the binding for user and decrements the referrer counter.
// It returns the removed referrer, or the zero address if none was bound.
func (l *Ledger) Remove(user common.Address) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	referrer, exists := l.referrers[user]
	if !exists {
		return zeroAddr
	}
	delete(l.referrers, user)
	if l.counts[referrer] > 0 {
		l.counts[referrer]--
	}
	return referrer
}
