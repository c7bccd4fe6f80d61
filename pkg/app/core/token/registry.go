package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Resolver maps a token address to the ledger managing it. The exchange
// consults it on every token deposit and withdrawal.
type Resolver interface {
	Ledger(addr common.Address) (Ledger, bool)
}

// Registry manages known token ledgers in a thread-safe manner.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]Ledger
}

func NewRegistry() *Registry {
	return &Registry{
		ledgers: make(map[common.Address]Ledger),
	}
}

// Register adds a ledger for addr.
// Returns error if a ledger is already registered at that address.
func (r *Registry) Register(addr common.Address, l Ledger) error {
	if l == nil {
		return fmt.Errorf("cannot register nil ledger")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ledgers[addr]; exists {
		return fmt.Errorf("token %s already registered", addr.Hex())
	}

	r.ledgers[addr] = l
	return nil
}

func (r *Registry) Ledger(addr common.Address) (Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[addr]
	return l, ok
}

// Addresses returns all registered token addresses.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := make([]common.Address, 0, len(r.ledgers))
	for addr := range r.ledgers {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ledgers)
}

var _ Resolver = (*Registry)(nil)
