package exchange

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// Order is immutable once created. Lifecycle flags live in OrderStatus,
// keyed by the same id.
type Order struct {
	ID            int64          `json:"id"`
	Creator       common.Address `json:"creator"`
	AssetWanted   asset.ID       `json:"assetWanted"`
	AmountWanted  int64          `json:"amountWanted"`
	AssetOffered  asset.ID       `json:"assetOffered"`
	AmountOffered int64          `json:"amountOffered"`
	CreatedAt     int64          `json:"createdAt"` // Unix milliseconds
}

// OrderStatus tracks the mutable lifecycle state of an order.
// Open -> Filled and Open -> Cancelled are the only transitions; both are
// terminal, single-shot, and mutually exclusive.
type OrderStatus struct {
	Filled    bool `json:"filled"`
	Cancelled bool `json:"cancelled"`
}

func (s *OrderStatus) finalized() bool { return s.Filled || s.Cancelled }

// MakeOrder records a new order offering amountOffered of assetOffered for
// amountWanted of assetWanted. No balance check happens here: an
// under-funded creator is only rejected at fill time.
func (ex *Exchange) MakeOrder(caller common.Address, assetWanted asset.ID, amountWanted int64, assetOffered asset.ID, amountOffered int64) (*Order, error) {
	if amountWanted < 0 || amountOffered < 0 {
		return nil, fmt.Errorf("order amounts cannot be negative: wanted=%d offered=%d", amountWanted, amountOffered)
	}

	ex.mu.Lock()
	ex.orderCount++
	order := &Order{
		ID:            ex.orderCount,
		Creator:       caller,
		AssetWanted:   assetWanted,
		AmountWanted:  amountWanted,
		AssetOffered:  assetOffered,
		AmountOffered: amountOffered,
		CreatedAt:     ex.clock.Now().UnixMilli(),
	}
	st := &OrderStatus{}
	ex.orders[order.ID] = order
	ex.status[order.ID] = st

	if err := ex.persistOrderLocked(order, st); err != nil {
		ex.rollbackOrderLocked(order.ID)
		ex.mu.Unlock()
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	ex.mu.Unlock()

	ex.emit(OrderEvent{
		ID:            order.ID,
		Creator:       order.Creator,
		AssetWanted:   order.AssetWanted,
		AmountWanted:  order.AmountWanted,
		AssetOffered:  order.AssetOffered,
		AmountOffered: order.AmountOffered,
		CreatedAt:     order.CreatedAt,
	})
	return order, nil
}

func (ex *Exchange) rollbackOrderLocked(id int64) {
	delete(ex.orders, id)
	delete(ex.status, id)
	ex.orderCount--
}

func (ex *Exchange) persistOrderLocked(order *Order, st *OrderStatus) error {
	if ex.store == nil {
		return nil
	}
	batch := ex.store.NewBatch()
	defer batch.Close()
	if err := batch.SaveOrder(order); err != nil {
		return err
	}
	if err := batch.SaveStatus(order.ID, st); err != nil {
		return err
	}
	if err := batch.SetOrderCount(ex.orderCount); err != nil {
		return err
	}
	return batch.Commit()
}

func (ex *Exchange) persistStatusLocked(id int64, st *OrderStatus) error {
	if ex.store == nil {
		return nil
	}
	batch := ex.store.NewBatch()
	defer batch.Close()
	if err := batch.SaveStatus(id, st); err != nil {
		return err
	}
	return batch.Commit()
}

// CancelOrder marks an open order cancelled. Only the creator may cancel,
// and only while the order is neither filled nor cancelled.
func (ex *Exchange) CancelOrder(caller common.Address, id int64) error {
	ex.mu.Lock()

	order, ok := ex.orders[id]
	if !ok {
		ex.mu.Unlock()
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}
	if order.Creator != caller {
		ex.mu.Unlock()
		return fmt.Errorf("cancel order %d: caller %s is not creator: %w", id, caller.Hex(), ErrUnauthorized)
	}
	st := ex.status[id]
	if st.finalized() {
		ex.mu.Unlock()
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderAlreadyFinalized)
	}

	st.Cancelled = true
	if err := ex.persistStatusLocked(id, st); err != nil {
		st.Cancelled = false
		ex.mu.Unlock()
		return fmt.Errorf("failed to persist cancel: %w", err)
	}
	cancelledAt := ex.clock.Now().UnixMilli()
	ex.mu.Unlock()

	ex.emit(CancelEvent{
		ID:            order.ID,
		Creator:       order.Creator,
		AssetWanted:   order.AssetWanted,
		AmountWanted:  order.AmountWanted,
		AssetOffered:  order.AssetOffered,
		AmountOffered: order.AmountOffered,
		CancelledAt:   cancelledAt,
	})
	return nil
}

// GetOrder returns the order and its lifecycle flags.
func (ex *Exchange) GetOrder(id int64) (*Order, OrderStatus, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	order, ok := ex.orders[id]
	if !ok {
		return nil, OrderStatus{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return order, *ex.status[id], nil
}

// OrderCount returns the id of the most recently created order.
func (ex *Exchange) OrderCount() int64 {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.orderCount
}

// ListOrders returns all orders sorted by id.
func (ex *Exchange) ListOrders() []*Order {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	out := make([]*Order, 0, len(ex.orders))
	for _, o := range ex.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenOrders returns orders that are neither filled nor cancelled, sorted
// by id.
func (ex *Exchange) OpenOrders() []*Order {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	out := make([]*Order, 0, len(ex.orders))
	for id, o := range ex.orders {
		if !ex.status[id].finalized() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
