package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// Event is a notification of a committed state change. Events are emitted
// after the mutation is applied; the exchange's correctness never depends
// on any sink observing them.
type Event interface {
	Kind() string
}

// DepositEvent is emitted on every successful deposit (native or token).
type DepositEvent struct {
	Asset   asset.ID       `json:"asset"`
	Account common.Address `json:"account"`
	Amount  int64          `json:"amount"`
	Balance int64          `json:"balance"` // resulting balance for (asset, account)
}

// WithdrawEvent is emitted on every successful withdrawal.
type WithdrawEvent struct {
	Asset   asset.ID       `json:"asset"`
	Account common.Address `json:"account"`
	Amount  int64          `json:"amount"`
	Balance int64          `json:"balance"`
}

// OrderEvent is emitted when a new order is recorded.
type OrderEvent struct {
	ID            int64          `json:"id"`
	Creator       common.Address `json:"creator"`
	AssetWanted   asset.ID       `json:"assetWanted"`
	AmountWanted  int64          `json:"amountWanted"`
	AssetOffered  asset.ID       `json:"assetOffered"`
	AmountOffered int64          `json:"amountOffered"`
	CreatedAt     int64          `json:"createdAt"` // Unix milliseconds
}

// CancelEvent is emitted when an open order is cancelled by its creator.
type CancelEvent struct {
	ID            int64          `json:"id"`
	Creator       common.Address `json:"creator"`
	AssetWanted   asset.ID       `json:"assetWanted"`
	AmountWanted  int64          `json:"amountWanted"`
	AssetOffered  asset.ID       `json:"assetOffered"`
	AmountOffered int64          `json:"amountOffered"`
	CancelledAt   int64          `json:"cancelledAt"`
}

// TradeEvent is emitted when an order is filled.
type TradeEvent struct {
	ID            int64          `json:"id"`
	Creator       common.Address `json:"creator"`
	AssetWanted   asset.ID       `json:"assetWanted"`
	AmountWanted  int64          `json:"amountWanted"`
	AssetOffered  asset.ID       `json:"assetOffered"`
	AmountOffered int64          `json:"amountOffered"`
	Filler        common.Address `json:"filler"`
	FilledAt      int64          `json:"filledAt"`
}

func (DepositEvent) Kind() string  { return "deposit" }
func (WithdrawEvent) Kind() string { return "withdraw" }
func (OrderEvent) Kind() string    { return "order" }
func (CancelEvent) Kind() string   { return "cancel" }
func (TradeEvent) Kind() string    { return "trade" }

// Sink receives committed events. Sinks run on the mutating goroutine and
// should return quickly; slow consumers buffer on their own side.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

func (ex *Exchange) emit(e Event) {
	for _, s := range ex.sinks {
		s.Emit(e)
	}
}
