// Package dex wires the exchange engine to the execution substrate: it
// drains the mempool into block proposals and executes finalized blocks
// serially against the ledger.
package dex

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tokendex/tokendex/pkg/abci"
	"github.com/tokendex/tokendex/pkg/app/core/exchange"
	"github.com/tokendex/tokendex/pkg/app/core/mempool"
	"github.com/tokendex/tokendex/pkg/app/core/transaction"
)

type App struct {
	mempool  *mempool.Mempool
	exchange *exchange.Exchange
	logger   *zap.SugaredLogger

	lastHeight  int64
	lastAppHash [32]byte
}

func NewApp(mp *mempool.Mempool, ex *exchange.Exchange, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		mempool:  mp,
		exchange: ex,
		logger:   logger,
	}
}

func (a *App) Mempool() *mempool.Mempool    { return a.mempool }
func (a *App) Exchange() *exchange.Exchange { return a.exchange }
func (a *App) LastHeight() int64            { return a.lastHeight }
func (a *App) LastAppHash() [32]byte        { return a.lastAppHash }

// SubmitTx admits a raw transaction into the mempool after structural
// validation. Execution-time failures (insufficient balance, bad order id)
// are still possible and surface as rejects at finalization.
func (a *App) SubmitTx(raw []byte) error {
	if _, err := transaction.ParseTransaction(raw); err != nil {
		return err
	}
	a.mempool.PushRaw(raw)
	return nil
}

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	txs := a.mempool.SelectForProposal(req.MaxTxBytes)
	return abci.ResponsePrepareProposal{Txs: txs}
}

// ProcessProposal re-checks structural validity. A block containing only
// parseable envelopes is always acceptable; individual txs may still fail
// at execution.
func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	for _, raw := range req.Txs {
		if _, err := transaction.ParseTransaction(raw); err != nil {
			a.logger.Warnw("proposal_tx_invalid", "height", req.Height, "err", err)
			return abci.ResponseProcessProposal{Accept: false}
		}
	}
	return abci.ResponseProcessProposal{Accept: true}
}

// FinalizeBlock executes the block's transactions in order. Each tx applies
// fully or not at all; a rejected tx never dirties the ledger and never
// stops the rest of the block.
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	var applied, rejects int
	for _, raw := range req.Txs {
		if err := a.applyTx(raw); err != nil {
			rejects++
			a.logger.Debugw("tx_rejected", "height", req.Height, "err", err)
			continue
		}
		applied++
	}

	a.lastHeight = req.Height
	a.lastAppHash = a.computeStateHash(req.Height, req.Timestamp)

	return abci.ResponseFinalizeBlock{
		Applied: applied,
		Rejects: rejects,
		AppHash: a.lastAppHash,
	}
}

// computeStateHash folds height, timestamp, every balance entry and every
// order (with status) into one sha256, iterating in sorted key order so
// two nodes with equal state produce equal hashes.
func (a *App) computeStateHash(height, timestamp int64) [32]byte {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(timestamp))
	h.Write(buf[:])

	balances := a.exchange.SnapshotBalances()
	assetKeys := make([]string, 0, len(balances))
	byAsset := make(map[string]map[common.Address]int64, len(balances))
	for id, accounts := range balances {
		k := id.String()
		assetKeys = append(assetKeys, k)
		byAsset[k] = accounts
	}
	sort.Strings(assetKeys)

	for _, ak := range assetKeys {
		accounts := byAsset[ak]
		addrs := make([]string, 0, len(accounts))
		byAddr := make(map[string]int64, len(accounts))
		for addr, amt := range accounts {
			k := addr.Hex()
			addrs = append(addrs, k)
			byAddr[k] = amt
		}
		sort.Strings(addrs)

		for _, addr := range addrs {
			h.Write([]byte(ak))
			h.Write([]byte(addr))
			binary.BigEndian.PutUint64(buf[:], uint64(byAddr[addr]))
			h.Write(buf[:])
		}
	}

	for _, o := range a.exchange.ListOrders() {
		binary.BigEndian.PutUint64(buf[:], uint64(o.ID))
		h.Write(buf[:])
		h.Write(o.Creator.Bytes())
		h.Write([]byte(o.AssetWanted.String()))
		binary.BigEndian.PutUint64(buf[:], uint64(o.AmountWanted))
		h.Write(buf[:])
		h.Write([]byte(o.AssetOffered.String()))
		binary.BigEndian.PutUint64(buf[:], uint64(o.AmountOffered))
		h.Write(buf[:])

		_, st, err := a.exchange.GetOrder(o.ID)
		if err == nil {
			var flags byte
			if st.Filled {
				flags |= 1
			}
			if st.Cancelled {
				flags |= 2
			}
			h.Write([]byte{flags})
		}
	}

	var out [32]byte
	h.Sum(out[:0])
	return out
}
