// Package exchange implements the balance ledger and order engine: a
// per-asset, per-account balance table, the order registry, and the
// deposit/withdraw/make/cancel/fill operations. The execution substrate
// serializes mutating operations; the RWMutex here only shields concurrent
// API reads from the single writer.
package exchange

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
	"github.com/tokendex/tokendex/pkg/app/core/token"
	"github.com/tokendex/tokendex/pkg/util"
)

// Config carries the immutable construction parameters.
type Config struct {
	// FeeAccount receives the taker fee on every fill.
	FeeAccount common.Address
	// FeePercent is a whole percentage of amountWanted, truncated toward zero.
	FeePercent int64
	// Custody is the exchange's own address on token ledgers: token deposits
	// pull into it, withdrawals pay out of it.
	Custody common.Address
	// Tokens resolves token addresses to their ledgers. Required for token
	// deposits/withdrawals.
	Tokens token.Resolver
	// Clock stamps orders, cancels and trades. Defaults to the wall clock.
	Clock util.Clock
}

// Exchange owns the balance table and order registry exclusively. All
// mutating methods are atomic: they either apply fully or leave no trace.
type Exchange struct {
	feeAccount common.Address
	feePercent int64
	custody    common.Address
	tokens     token.Resolver
	clock      util.Clock

	mu         sync.RWMutex
	balances   map[asset.ID]map[common.Address]int64
	orders     map[int64]*Order
	status     map[int64]*OrderStatus
	orderCount int64

	store *Store // nil = in-memory only
	sinks []Sink
}

// New creates an in-memory exchange.
func New(cfg Config) *Exchange {
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.FeePercent < 0 {
		cfg.FeePercent = 0
	}
	return &Exchange{
		feeAccount: cfg.FeeAccount,
		feePercent: cfg.FeePercent,
		custody:    cfg.Custody,
		tokens:     cfg.Tokens,
		clock:      cfg.Clock,
		balances:   make(map[asset.ID]map[common.Address]int64),
		orders:     make(map[int64]*Order),
		status:     make(map[int64]*OrderStatus),
	}
}

// NewWithStore creates an exchange backed by a pebble database at dbPath,
// reloading any persisted ledger state.
func NewWithStore(cfg Config, dbPath string) (*Exchange, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	ex := New(cfg)
	ex.store = store

	st, err := store.LoadAll()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	ex.balances = st.Balances
	ex.orders = st.Orders
	ex.status = st.Status
	ex.orderCount = st.OrderCount

	return ex, nil
}

// Close closes the underlying database, if any.
func (ex *Exchange) Close() error {
	if ex.store == nil {
		return nil
	}
	return ex.store.Close()
}

// AddSink registers an event sink. Not safe to call once operations have
// started; wire sinks at setup time.
func (ex *Exchange) AddSink(s Sink) {
	ex.sinks = append(ex.sinks, s)
}

func (ex *Exchange) FeeAccount() common.Address { return ex.feeAccount }
func (ex *Exchange) FeePercent() int64          { return ex.feePercent }
func (ex *Exchange) Custody() common.Address    { return ex.custody }

// DepositNative credits the caller's native balance by amount. The caller
// has already handed the native value to the substrate; the credit must
// consume it exactly.
func (ex *Exchange) DepositNative(caller common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("deposit amount cannot be negative: %d", amount)
	}

	ex.mu.Lock()
	balance := ex.creditLocked(asset.Native(), caller, amount)
	if err := ex.persistBalances(asset.Native(), caller); err != nil {
		ex.creditLocked(asset.Native(), caller, -amount)
		ex.mu.Unlock()
		return fmt.Errorf("deposit native: failed to persist: %w", err)
	}
	ex.mu.Unlock()

	ex.emit(DepositEvent{Asset: asset.Native(), Account: caller, Amount: amount, Balance: balance})
	return nil
}

// WithdrawNative debits the caller's native balance and releases the value
// back to the caller.
func (ex *Exchange) WithdrawNative(caller common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("withdraw amount cannot be negative: %d", amount)
	}

	ex.mu.Lock()
	have := ex.balanceLocked(asset.Native(), caller)
	if have < amount {
		ex.mu.Unlock()
		return fmt.Errorf("withdraw native: have %d, need %d: %w", have, amount, ErrInsufficientBalance)
	}
	balance := ex.creditLocked(asset.Native(), caller, -amount)
	if err := ex.persistBalances(asset.Native(), caller); err != nil {
		ex.creditLocked(asset.Native(), caller, amount)
		ex.mu.Unlock()
		return fmt.Errorf("withdraw native: failed to persist: %w", err)
	}
	ex.mu.Unlock()

	ex.emit(WithdrawEvent{Asset: asset.Native(), Account: caller, Amount: amount, Balance: balance})
	return nil
}

// DepositToken pulls amount of the given token from the caller into the
// exchange's custody (requires a prior allowance on the token ledger) and
// credits the caller's internal balance.
func (ex *Exchange) DepositToken(caller common.Address, a asset.ID, amount int64) error {
	if !a.IsToken() {
		return fmt.Errorf("deposit token: native asset must use DepositNative: %w", ErrInvalidAsset)
	}
	if amount < 0 {
		return fmt.Errorf("deposit amount cannot be negative: %d", amount)
	}

	ledger, err := ex.ledgerFor(a)
	if err != nil {
		return err
	}

	// Custody moves first; the internal credit only happens if the token
	// ledger accepted the pull.
	if err := ledger.TransferFrom(ex.custody, caller, ex.custody, amount); err != nil {
		return fmt.Errorf("deposit token %s: %v: %w", a, err, ErrTransferFailed)
	}

	ex.mu.Lock()
	balance := ex.creditLocked(a, caller, amount)
	if err := ex.persistBalances(a, caller); err != nil {
		// Undo the credit and hand the pulled tokens back.
		ex.creditLocked(a, caller, -amount)
		if cerr := ledger.Transfer(ex.custody, caller, amount); cerr != nil {
			ex.mu.Unlock()
			return fmt.Errorf("deposit token %s: failed to persist (%v) and to return tokens: %w", a, err, cerr)
		}
		ex.mu.Unlock()
		return fmt.Errorf("deposit token %s: failed to persist: %w", a, err)
	}
	ex.mu.Unlock()

	ex.emit(DepositEvent{Asset: a, Account: caller, Amount: amount, Balance: balance})
	return nil
}

// WithdrawToken debits the caller's internal balance and pays the tokens
// out of exchange custody back to the caller.
func (ex *Exchange) WithdrawToken(caller common.Address, a asset.ID, amount int64) error {
	if !a.IsToken() {
		return fmt.Errorf("withdraw token: native asset must use WithdrawNative: %w", ErrInvalidAsset)
	}
	if amount < 0 {
		return fmt.Errorf("withdraw amount cannot be negative: %d", amount)
	}

	ledger, err := ex.ledgerFor(a)
	if err != nil {
		return err
	}

	ex.mu.Lock()
	have := ex.balanceLocked(a, caller)
	if have < amount {
		ex.mu.Unlock()
		return fmt.Errorf("withdraw token %s: have %d, need %d: %w", a, have, amount, ErrInsufficientBalance)
	}

	// Debit durably first, pay out of custody last: a persist failure must
	// not strand tokens that already left the exchange.
	balance := ex.creditLocked(a, caller, -amount)
	if err := ex.persistBalances(a, caller); err != nil {
		ex.creditLocked(a, caller, amount)
		ex.mu.Unlock()
		return fmt.Errorf("withdraw token %s: failed to persist: %w", a, err)
	}

	if err := ledger.Transfer(ex.custody, caller, amount); err != nil {
		// Payout refused; restore the entry and its persisted image.
		ex.creditLocked(a, caller, amount)
		if perr := ex.persistBalances(a, caller); perr != nil {
			ex.mu.Unlock()
			return fmt.Errorf("withdraw token %s: %v, and failed to persist restore (%v): %w", a, err, perr, ErrTransferFailed)
		}
		ex.mu.Unlock()
		return fmt.Errorf("withdraw token %s: %v: %w", a, err, ErrTransferFailed)
	}
	ex.mu.Unlock()

	ex.emit(WithdrawEvent{Asset: a, Account: caller, Amount: amount, Balance: balance})
	return nil
}

// BalanceOf returns the current table entry, zero for unseen pairs.
// Never blocks a writer for long and never mutates state.
func (ex *Exchange) BalanceOf(a asset.ID, account common.Address) int64 {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.balanceLocked(a, account)
}

// BalancesOf returns every non-zero balance held by account.
func (ex *Exchange) BalancesOf(account common.Address) map[asset.ID]int64 {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	out := make(map[asset.ID]int64)
	for a, accounts := range ex.balances {
		if amt := accounts[account]; amt != 0 {
			out[a] = amt
		}
	}
	return out
}

// TotalOf returns the sum of balances for an asset across all accounts.
// Deposits and withdrawals are the only operations that change it.
func (ex *Exchange) TotalOf(a asset.ID) int64 {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	var total int64
	for _, amt := range ex.balances[a] {
		total += amt
	}
	return total
}

// SnapshotBalances returns a deep copy of the balance table. Used for
// state hashing and inspection; mutations to the copy never reach the
// ledger.
func (ex *Exchange) SnapshotBalances() map[asset.ID]map[common.Address]int64 {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	out := make(map[asset.ID]map[common.Address]int64, len(ex.balances))
	for a, accounts := range ex.balances {
		cp := make(map[common.Address]int64, len(accounts))
		for acct, amt := range accounts {
			cp[acct] = amt
		}
		out[a] = cp
	}
	return out
}

// Assets returns every asset the ledger has seen.
func (ex *Exchange) Assets() []asset.ID {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	out := make([]asset.ID, 0, len(ex.balances))
	for a := range ex.balances {
		out = append(out, a)
	}
	return out
}

func (ex *Exchange) ledgerFor(a asset.ID) (token.Ledger, error) {
	if ex.tokens == nil {
		return nil, fmt.Errorf("token %s: no ledger resolver configured: %w", a, ErrTransferFailed)
	}
	ledger, ok := ex.tokens.Ledger(a.TokenAddress())
	if !ok {
		return nil, fmt.Errorf("token %s: no ledger registered: %w", a, ErrTransferFailed)
	}
	return ledger, nil
}

// balanceLocked assumes at least a read lock is held.
func (ex *Exchange) balanceLocked(a asset.ID, account common.Address) int64 {
	if accounts, ok := ex.balances[a]; ok {
		return accounts[account]
	}
	return 0
}

// creditLocked adjusts a single entry and returns the new balance.
// Assumes the write lock is held; negative results are the caller's bug.
func (ex *Exchange) creditLocked(a asset.ID, account common.Address, delta int64) int64 {
	accounts, ok := ex.balances[a]
	if !ok {
		accounts = make(map[common.Address]int64)
		ex.balances[a] = accounts
	}
	accounts[account] += delta
	return accounts[account]
}

// persistBalances writes the given (asset, account) entries in one batch.
// Assumes the write lock is held.
func (ex *Exchange) persistBalances(a asset.ID, accounts ...common.Address) error {
	if ex.store == nil {
		return nil
	}
	batch := ex.store.NewBatch()
	defer batch.Close()
	for _, acct := range accounts {
		if err := batch.SetBalance(a, acct, ex.balanceLocked(a, acct)); err != nil {
			return err
		}
	}
	return batch.Commit()
}
