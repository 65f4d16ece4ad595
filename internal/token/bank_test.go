package token

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testAsset = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

func TestMintAndMove(t *testing.T) {
	bank := NewBank()

	if err := bank.Mint(testAsset, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if got := bank.BalanceOf(testAsset, alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("alice balance = %s, want 1000", got)
	}
	if got := bank.Minted(testAsset); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("minted = %s, want 1000", got)
	}

	if err := bank.Move(testAsset, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if got := bank.BalanceOf(testAsset, alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("alice balance = %s, want 600", got)
	}
	if got := bank.BalanceOf(testAsset, bob); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("bob balance = %s, want 400", got)
	}
}

func TestMoveInsufficientBalance(t *testing.T) {
	bank := NewBank()

	if err := bank.Mint(testAsset, alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err := bank.Move(testAsset, alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Failed move must leave both balances untouched.
	if got := bank.BalanceOf(testAsset, alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("alice balance = %s, want 10", got)
	}
	if got := bank.BalanceOf(testAsset, bob); got.Sign() != 0 {
		t.Fatalf("bob balance = %s, want 0", got)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	bank := NewBank()

	if err := bank.Mint(testAsset, alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	balance := bank.BalanceOf(testAsset, alice)
	balance.SetInt64(999)

	if got := bank.BalanceOf(testAsset, alice); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance mutated through copy: %s", got)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	bank := NewBank()
	if err := bank.Mint(testAsset, alice, big.NewInt(123)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := bank.Move(testAsset, alice, bob, big.NewInt(23)); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	state := bank.Export()

	restored := NewBank()
	if err := restored.Restore(state); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if !reflect.DeepEqual(restored.Export(), state) {
		t.Fatalf("round-trip mismatch")
	}
	if got := restored.BalanceOf(testAsset, bob); got.Cmp(big.NewInt(23)) != 0 {
		t.Fatalf("bob balance = %s, want 23", got)
	}
	if got := restored.Minted(testAsset); got.Cmp(big.NewInt(123)) != 0 {
		t.Fatalf("minted = %s, want 123", got)
	}
}
