package mempool

import (
	"encoding/json"
	"sync"
)

// TxType classifies transactions into admission buckets.
type TxType int

const (
	TxTransfer TxType = iota // deposits and withdrawals
	TxCancel
	TxOrder // make_order and fill_order
)

// ClassifyRaw classifies a raw transaction by parsing the JSON envelope.
//
// Buckets:
//   deposit_* / withdraw_*  -> TxTransfer
//   cancel_order            -> TxCancel
//   make_order / fill_order -> TxOrder
//
// Malformed transactions default to TxOrder; the app rejects them at
// execution with no effect.
func ClassifyRaw(b []byte) TxType {
	if len(b) == 0 || b[0] != '{' {
		return TxOrder
	}

	var txEnvelope struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(b, &txEnvelope); err != nil {
		return TxOrder
	}

	switch txEnvelope.Type {
	case "deposit_native", "withdraw_native", "deposit_token", "withdraw_token":
		return TxTransfer
	case "cancel_order":
		return TxCancel
	default:
		return TxOrder
	}
}

// Mempool maintains three queues: (1) transfers, (2) cancels, (3) orders
// and fills. Funding lands before cancels, cancels before new order flow.
// Within each bucket, FIFO by admission order.
type Mempool struct {
	mu        sync.Mutex
	transfers [][]byte
	cancels   [][]byte
	orders    [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a tx.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxTransfer:
		m.transfers = append(m.transfers, cp)
	case TxCancel:
		m.cancels = append(m.cancels, cp)
	default:
		m.orders = append(m.orders, cp)
	}
}

// SelectForProposal returns up to maxBytes worth of txs in bucket order,
// removing selected txs from the mempool.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64

	pull := func(q *[][]byte) {
		for len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	// Order: transfers -> cancels -> orders/fills
	pull(&m.transfers)
	pull(&m.cancels)
	pull(&m.orders)

	return out
}

// Len returns total pending txs (for tests/metrics if needed).
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers) + len(m.cancels) + len(m.orders)
}
