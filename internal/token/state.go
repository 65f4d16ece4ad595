package token

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// State is the JSON-friendly snapshot form of a Bank.
type State struct {
	Balances []BalanceState `json:"balances"`
	Minted   []MintedState  `json:"minted"`
}

// BalanceState is one (asset, account) balance entry.
type BalanceState struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// MintedState is the cumulative minted supply for one asset.
type MintedState struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// Export captures the bank contents in deterministic order.
func (b *Bank) Export() State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state := State{}
	for asset, accounts := range b.balances {
		for account, balance := range accounts {
			if balance.Sign() == 0 {
				continue
			}
			state.Balances = append(state.Balances, BalanceState{
				Asset:   asset.Hex(),
				Account: account.Hex(),
				Amount:  balance.String(),
			})
		}
	}
	for asset, total := range b.minted {
		state.Minted = append(state.Minted, MintedState{
			Asset:  asset.Hex(),
			Amount: total.String(),
		})
	}

	sort.Slice(state.Balances, func(i, j int) bool {
		if state.Balances[i].Asset != state.Balances[j].Asset {
			return state.Balances[i].Asset < state.Balances[j].Asset
		}
		return state.Balances[i].Account < state.Balances[j].Account
	})
	sort.Slice(state.Minted, func(i, j int) bool {
		return state.Minted[i].Asset < state.Minted[j].Asset
	})

	return state
}

// Restore replaces the bank contents with a previously exported state.
func (b *Bank) Restore(state State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balances := make(map[common.Address]map[common.Address]*big.Int)
	minted := make(map[common.Address]*big.Int)

	for _, entry := range state.Balances {
		if !common.IsHexAddress(entry.Asset) || !common.IsHexAddress(entry.Account) {
			return fmt.Errorf("token: invalid balance entry %s/%s", entry.Asset, entry.Account)
		}
		amount, ok := new(big.Int).SetString(entry.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("token: invalid balance amount %q", entry.Amount)
		}
		asset := common.HexToAddress(entry.Asset)
		accounts, exists := balances[asset]
		if !exists {
			accounts = make(map[common.Address]*big.Int)
			balances[asset] = accounts
		}
		accounts[common.HexToAddress(entry.Account)] = amount
	}

	for _, entry := range state.Minted {
		if !common.IsHexAddress(entry.Asset) {
			return fmt.Errorf("token: invalid minted asset %s", entry.Asset)
		}
		amount, ok := new(big.Int).SetString(entry.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("token: invalid minted amount %q", entry.Amount)
		}
		minted[common.HexToAddress(entry.Asset)] = amount
	}

	b.balances = balances
	b.minted = minted
	return nil
}
