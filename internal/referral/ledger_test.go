package referral

import (
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	userA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	userB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	refR  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	refR2 = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func TestRecordBindsOnce(t *testing.T) {
	l := NewLedger()

	if got := l.Record(userA, refR); got != Bound {
		t.Fatalf("first record = %s, want bound", got)
	}
	if got := l.Referrer(userA); got != refR {
		t.Fatalf("referrer = %s, want %s", got.Hex(), refR.Hex())
	}
	if got := l.ReferralCount(refR); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}

	// Second attempt with a different referrer leaves the binding at refR.
	if got := l.Record(userA, refR2); got != AlreadyBound {
		t.Fatalf("second record = %s, want already_bound", got)
	}
	if got := l.Referrer(userA); got != refR {
		t.Fatalf("referrer changed to %s", got.Hex())
	}
	if got := l.ReferralCount(refR2); got != 0 {
		t.Fatalf("count for second referrer = %d, want 0", got)
	}
}

func TestRecordGuards(t *testing.T) {
	l := NewLedger()

	if got := l.Record(userA, userA); got != Rejected {
		t.Fatalf("self referral = %s, want rejected", got)
	}
	if got := l.Record(userA, common.Address{}); got != Rejected {
		t.Fatalf("zero referrer = %s, want rejected", got)
	}
	if got := l.Record(common.Address{}, refR); got != Rejected {
		t.Fatalf("zero user = %s, want rejected", got)
	}
	if got := l.Referrer(userA); got != (common.Address{}) {
		t.Fatalf("rejected attempt bound %s", got.Hex())
	}
}

func TestReferrerUnboundIsZero(t *testing.T) {
	l := NewLedger()
	if got := l.Referrer(userB); got != (common.Address{}) {
		t.Fatalf("unbound referrer = %s, want zero", got.Hex())
	}
}

func TestRemoveAdjustsCounter(t *testing.T) {
	l := NewLedger()
	l.Record(userA, refR)
	l.Record(userB, refR)

	if got := l.ReferralCount(refR); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	if got := l.Remove(userA); got != refR {
		t.Fatalf("removed referrer = %s, want %s", got.Hex(), refR.Hex())
	}
	if got := l.ReferralCount(refR); got != 1 {
		t.Fatalf("count after remove = %d, want 1", got)
	}
	if got := l.Referrer(userA); got != (common.Address{}) {
		t.Fatalf("binding should be cleared")
	}

	// Removing an unbound user is a no-op.
	if got := l.Remove(userA); got != (common.Address{}) {
		t.Fatalf("second remove = %s, want zero", got.Hex())
	}

	// The user can bind again after removal.
	if got := l.Record(userA, refR2); got != Bound {
		t.Fatalf("rebind = %s, want bound", got)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Record(userA, refR)
	l.Record(userB, refR)

	state := l.Export()

	restored := NewLedger()
	if err := restored.Restore(state); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !reflect.DeepEqual(restored.Export(), state) {
		t.Fatalf("round-trip mismatch")
	}
	if got := restored.ReferralCount(refR); got != 2 {
		t.Fatalf("restored count = %d, want 2", got)
	}
}
