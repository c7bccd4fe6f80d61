package exchange

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// Store provides pebble-based persistence for the balance table, order
// registry, lifecycle flags and the order counter. All writes go through
// atomic batches so one operation's state lands together.
type Store struct {
	db *pebble.DB
}

// NewStore opens a pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:             32 << 20,                  // 32MB memtable
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// State is the full persisted ledger image, loaded at startup.
type State struct {
	Balances   map[asset.ID]map[common.Address]int64
	Orders     map[int64]*Order
	Status     map[int64]*OrderStatus
	OrderCount int64
}

// LoadAll reads the complete ledger state from disk.
func (s *Store) LoadAll() (*State, error) {
	st := &State{
		Balances: make(map[asset.ID]map[common.Address]int64),
		Orders:   make(map[int64]*Order),
		Status:   make(map[int64]*OrderStatus),
	}

	if err := s.loadBalances(st); err != nil {
		return nil, err
	}
	if err := s.loadOrders(st); err != nil {
		return nil, err
	}
	if err := s.loadStatus(st); err != nil {
		return nil, err
	}

	data, closer, err := s.db.Get([]byte(keyOrderCount))
	if err == nil {
		defer closer.Close()
		if err := json.Unmarshal(data, &st.OrderCount); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order count: %w", err)
		}
	} else if err != pebble.ErrNotFound {
		return nil, fmt.Errorf("failed to get order count: %w", err)
	}

	return st, nil
}

func (s *Store) loadBalances(st *State) error {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to scan balances: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		a, account, err := parseBalanceKey(iter.Key())
		if err != nil {
			continue // Skip invalid entries
		}
		var amount int64
		if err := json.Unmarshal(iter.Value(), &amount); err != nil {
			continue
		}
		accounts, ok := st.Balances[a]
		if !ok {
			accounts = make(map[common.Address]int64)
			st.Balances[a] = accounts
		}
		accounts[account] = amount
	}
	return nil
}

func (s *Store) loadOrders(st *State) error {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to scan orders: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var order Order
		if err := json.Unmarshal(iter.Value(), &order); err != nil {
			continue
		}
		o := order
		st.Orders[o.ID] = &o
	}
	return nil
}

func (s *Store) loadStatus(st *State) error {
	prefix := []byte(prefixStatus)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to scan order status: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := parseStatusKey(iter.Key())
		if err != nil {
			continue
		}
		var flags OrderStatus
		if err := json.Unmarshal(iter.Value(), &flags); err != nil {
			continue
		}
		f := flags
		st.Status[id] = &f
	}

	// Orders persisted before their status write landed default to open.
	for id := range st.Orders {
		if _, ok := st.Status[id]; !ok {
			st.Status[id] = &OrderStatus{}
		}
	}
	return nil
}

// BatchWrite accumulates writes for one atomic commit.
type BatchWrite struct {
	batch *pebble.Batch
}

// NewBatch creates a new batch writer.
func (s *Store) NewBatch() *BatchWrite {
	return &BatchWrite{batch: s.db.NewBatch()}
}

// SetBalance adds a balance entry write to the batch.
func (bw *BatchWrite) SetBalance(a asset.ID, account common.Address, amount int64) error {
	data, err := json.Marshal(amount)
	if err != nil {
		return err
	}
	return bw.batch.Set(balanceKey(a, account), data, nil)
}

// SaveOrder adds an order record write to the batch.
func (bw *BatchWrite) SaveOrder(order *Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return bw.batch.Set(orderKey(order.ID), data, nil)
}

// SaveStatus adds an order's lifecycle flags to the batch.
func (bw *BatchWrite) SaveStatus(id int64, st *OrderStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return bw.batch.Set(statusKey(id), data, nil)
}

// SetOrderCount adds the order counter to the batch.
func (bw *BatchWrite) SetOrderCount(n int64) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return bw.batch.Set([]byte(keyOrderCount), data, nil)
}

// Commit writes the batch to pebble atomically.
func (bw *BatchWrite) Commit() error {
	return bw.batch.Commit(pebble.Sync)
}

// Close closes the batch without committing.
func (bw *BatchWrite) Close() error {
	return bw.batch.Close()
}
