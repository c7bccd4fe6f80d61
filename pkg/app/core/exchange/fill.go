package exchange

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// stagedBalances accumulates balance deltas for one fill without touching
// the table. Debits validate against the effective balance (current entry
// plus staged deltas), so a failure at any step leaves nothing applied.
type stagedBalances struct {
	ex     *Exchange
	keys   []balanceRef
	deltas map[balanceRef]int64
}

type balanceRef struct {
	asset   asset.ID
	account common.Address
}

func (ex *Exchange) newStaged() *stagedBalances {
	return &stagedBalances{ex: ex, deltas: make(map[balanceRef]int64)}
}

func (s *stagedBalances) effective(a asset.ID, account common.Address) int64 {
	return s.ex.balanceLocked(a, account) + s.deltas[balanceRef{a, account}]
}

func (s *stagedBalances) credit(a asset.ID, account common.Address, amount int64) {
	ref := balanceRef{a, account}
	if _, seen := s.deltas[ref]; !seen {
		s.keys = append(s.keys, ref)
	}
	s.deltas[ref] += amount
}

func (s *stagedBalances) debit(a asset.ID, account common.Address, amount int64) error {
	if have := s.effective(a, account); have < amount {
		return fmt.Errorf("have %d, need %d: %w", have, amount, ErrInsufficientBalance)
	}
	s.credit(a, account, -amount)
	return nil
}

// apply commits all staged deltas to the table. Assumes the write lock is
// held and every debit already validated.
func (s *stagedBalances) apply() {
	for _, ref := range s.keys {
		s.ex.creditLocked(ref.asset, ref.account, s.deltas[ref])
	}
}

// FillOrder executes the trade described by an open order, with caller as
// the filler. The filler pays amountWanted plus the fee in assetWanted;
// the creator receives exactly amountWanted and gives up amountOffered.
// All five balance mutations and the filled flag commit together or not
// at all.
func (ex *Exchange) FillOrder(caller common.Address, id int64) error {
	ex.mu.Lock()

	order, ok := ex.orders[id]
	if !ok {
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: %w", id, ErrOrderNotFound)
	}
	st := ex.status[id]
	if st.finalized() {
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: %w", id, ErrOrderAlreadyFinalized)
	}

	// Fee is charged on top of amountWanted, in the asset the creator
	// asked for, truncated toward zero.
	fee, err := feeFor(order.AmountWanted, ex.feePercent)
	if err != nil {
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: %w", id, err)
	}
	if fee > math.MaxInt64-order.AmountWanted {
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: amountWanted %d plus fee %d overflows", id, order.AmountWanted, fee)
	}

	staged := ex.newStaged()
	if err := staged.debit(order.AssetWanted, caller, order.AmountWanted+fee); err != nil {
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: filler %s: %w", id, order.AssetWanted, err)
	}
	staged.credit(order.AssetWanted, order.Creator, order.AmountWanted)
	staged.credit(order.AssetWanted, ex.feeAccount, fee)
	if err := staged.debit(order.AssetOffered, order.Creator, order.AmountOffered); err != nil {
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: creator %s: %w", id, order.AssetOffered, err)
	}
	staged.credit(order.AssetOffered, caller, order.AmountOffered)

	staged.apply()
	st.Filled = true

	if err := ex.persistFillLocked(staged, id, st); err != nil {
		// Undo the in-memory commit; the batch never landed.
		st.Filled = false
		for _, ref := range staged.keys {
			ex.creditLocked(ref.asset, ref.account, -staged.deltas[ref])
		}
		ex.mu.Unlock()
		return fmt.Errorf("fill order %d: failed to persist: %w", id, err)
	}
	filledAt := ex.clock.Now().UnixMilli()
	ex.mu.Unlock()

	ex.emit(TradeEvent{
		ID:            order.ID,
		Creator:       order.Creator,
		AssetWanted:   order.AssetWanted,
		AmountWanted:  order.AmountWanted,
		AssetOffered:  order.AssetOffered,
		AmountOffered: order.AmountOffered,
		Filler:        caller,
		FilledAt:      filledAt,
	})
	return nil
}

// feeFor computes floor(amount*percent/100) without the intermediate
// product overflowing int64. Splitting amount into 100q+r keeps every
// term in range: floor((100q+r)*p/100) = q*p + floor(r*p/100).
func feeFor(amount, percent int64) (int64, error) {
	if percent == 0 || amount == 0 {
		return 0, nil
	}
	q, r := amount/100, amount%100
	if q > math.MaxInt64/percent || (r > 0 && percent > math.MaxInt64/r) {
		return 0, fmt.Errorf("fee on %d at %d%% overflows", amount, percent)
	}
	whole := q * percent
	part := r * percent / 100
	if whole > math.MaxInt64-part {
		return 0, fmt.Errorf("fee on %d at %d%% overflows", amount, percent)
	}
	return whole + part, nil
}

// persistFillLocked writes every balance entry the fill touched plus the
// order's filled flag in a single atomic batch.
func (ex *Exchange) persistFillLocked(staged *stagedBalances, id int64, st *OrderStatus) error {
	if ex.store == nil {
		return nil
	}
	batch := ex.store.NewBatch()
	defer batch.Close()
	for _, ref := range staged.keys {
		if err := batch.SetBalance(ref.asset, ref.account, ex.balanceLocked(ref.asset, ref.account)); err != nil {
			return err
		}
	}
	if err := batch.SaveStatus(id, st); err != nil {
		return err
	}
	return batch.Commit()
}
