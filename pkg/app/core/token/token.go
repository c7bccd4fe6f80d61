// Package token holds the fungible-asset side of the system: the Ledger
// capability the exchange consumes, an in-memory implementation with
// standard transfer/approve/allowance semantics, and a registry resolving
// token addresses to their ledgers.
package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the capability surface the exchange depends on. Custody of
// token assets lives here; the exchange's balance table is independent
// bookkeeping reconciled only at deposit/withdraw boundaries.
type Ledger interface {
	// Transfer moves amount out of from's balance into to's.
	Transfer(from, to common.Address, amount int64) error
	// TransferFrom moves amount from owner to to, spending the allowance
	// owner previously granted to spender.
	TransferFrom(spender, owner, to common.Address, amount int64) error
	// Approve grants spender the right to pull up to amount from owner.
	Approve(owner, spender common.Address, amount int64) error
	BalanceOf(account common.Address) int64
	Allowance(owner, spender common.Address) int64
}

// Token is an in-memory fungible token ledger. The full supply is minted
// to the deployer at construction.
type Token struct {
	Name     string
	Symbol   string
	Decimals uint8
	Supply   int64

	mu         sync.RWMutex
	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64

	// Optional notification hooks, invoked after a successful mutation.
	OnTransfer func(from, to common.Address, amount int64)
	OnApproval func(owner, spender common.Address, amount int64)
}

func New(name, symbol string, decimals uint8, supply int64, deployer common.Address) *Token {
	t := &Token{
		Name:       name,
		Symbol:     symbol,
		Decimals:   decimals,
		Supply:     supply,
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
	}
	t.balances[deployer] = supply
	return t
}

func (t *Token) Transfer(from, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from] < amount {
		return fmt.Errorf("%s: insufficient balance: have %d, need %d", t.Symbol, t.balances[from], amount)
	}

	t.balances[from] -= amount
	t.balances[to] += amount

	if t.OnTransfer != nil {
		t.OnTransfer(from, to, amount)
	}
	return nil
}

func (t *Token) TransferFrom(spender, owner, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowanceLocked(owner, spender)
	if allowed < amount {
		return fmt.Errorf("%s: insufficient allowance: approved %d, need %d", t.Symbol, allowed, amount)
	}
	if t.balances[owner] < amount {
		return fmt.Errorf("%s: insufficient balance: have %d, need %d", t.Symbol, t.balances[owner], amount)
	}

	t.allowances[owner][spender] = allowed - amount
	t.balances[owner] -= amount
	t.balances[to] += amount

	if t.OnTransfer != nil {
		t.OnTransfer(owner, to, amount)
	}
	return nil
}

func (t *Token) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("approve amount cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]int64)
	}
	t.allowances[owner][spender] = amount

	if t.OnApproval != nil {
		t.OnApproval(owner, spender, amount)
	}
	return nil
}

func (t *Token) BalanceOf(account common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

func (t *Token) Allowance(owner, spender common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowanceLocked(owner, spender)
}

func (t *Token) allowanceLocked(owner, spender common.Address) int64 {
	if m, ok := t.allowances[owner]; ok {
		return m[spender]
	}
	return 0
}

var _ Ledger = (*Token)(nil)
