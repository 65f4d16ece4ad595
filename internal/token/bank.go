package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientBalance is returned when a move exceeds the sender balance.
var ErrInsufficientBalance = errors.New("token: insufficient balance")

// Bank is an in-memory fungible asset ledger. It implements the opaque
// value-moving capability the farm engine consumes: balances per (asset,
// account) plus a running minted total per asset.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
	minted   map[common.Address]*big.Int
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		minted:   make(map[common.Address]*big.Int),
	}
}

// Mint creates amount units of asset and credits them to account.
func (b *Bank) Mint(asset, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: mint amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(asset, account, amount)
	total, ok := b.minted[asset]
	if !ok {
		total = new(big.Int)
		b.minted[asset] = total
	}
	total.Add(total, amount)
	return nil
}

// Move transfers amount units of asset from one account to another.
// The transfer is all-or-nothing: an insufficient sender balance leaves
// both accounts untouched.
func (b *Bank) Move(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: move amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.lookup(asset, from)
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset %s account %s", ErrInsufficientBalance, asset.Hex(), from.Hex())
	}
	balance.Sub(balance, amount)
	b.credit(asset, to, amount)
	return nil
}

// BalanceOf returns a copy of the account balance for asset.
func (b *Bank) BalanceOf(asset, account common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	balance := b.lookup(asset, account)
	if balance == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// Minted returns a copy of the cumulative minted supply for asset.
func (b *Bank) Minted(asset common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total, ok := b.minted[asset]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(total)
}

func (b *Bank) lookup(asset, account common.Address) *big.Int {
	accounts, ok := b.balances[asset]
	if !ok {
		return nil
	}
	return accounts[account]
}

func (b *Bank) credit(asset, account common.Address, amount *big.Int) {
	accounts, ok := b.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		b.balances[asset] = accounts
	}
	balance, ok := accounts[account]
	if !ok {
		balance = new(big.Int)
		accounts[account] = balance
	}
	balance.Add(balance, amount)
}
