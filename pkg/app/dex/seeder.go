package dex

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
	"github.com/tokendex/tokendex/pkg/app/core/token"
	"github.com/tokendex/tokendex/pkg/app/core/transaction"
)

// SeederConfig controls the demo traffic generator.
type SeederConfig struct {
	Token       common.Address // token traded against native
	Deployer    common.Address // holds the token supply to hand out
	NumTraders  int
	GrantToken  int64 // token units given to each trader
	GrantNative int64 // native units deposited per trader
	Interval    time.Duration
	BatchSize   int
}

// DefaultSeederConfig returns a light demo load.
func DefaultSeederConfig(tokenAddr, deployer common.Address) SeederConfig {
	return SeederConfig{
		Token:       tokenAddr,
		Deployer:    deployer,
		NumTraders:  8,
		GrantToken:  100_000,
		GrantNative: 100_000,
		Interval:    500 * time.Millisecond,
		BatchSize:   4,
	}
}

type seeder struct {
	app     *App
	ledger  token.Ledger
	cfg     SeederConfig
	logger  *zap.SugaredLogger
	traders []common.Address
	rng     *rand.Rand
}

// StartSeeder funds a set of demo traders and then feeds random
// make/cancel/fill traffic into the mempool until the returned cancel
// function fires. The token ledger is driven directly for the off-exchange
// steps (handing out tokens, approving custody), mirroring what wallet
// users would do before depositing.
func StartSeeder(ctx context.Context, app *App, ledger token.Ledger, cfg SeederConfig, logger *zap.SugaredLogger) context.CancelFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.NumTraders <= 0 {
		cfg.NumTraders = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}

	s := &seeder{
		app:    app,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i := 0; i < cfg.NumTraders; i++ {
		s.traders = append(s.traders, common.HexToAddress(fmt.Sprintf("0x%040x", 0xA0000+i)))
	}

	seedCtx, cancel := context.WithCancel(ctx)

	go func() {
		if err := s.fund(); err != nil {
			logger.Errorw("seeder_funding_failed", "err", err)
			return
		}
		logger.Infow("seeder_started", "traders", cfg.NumTraders, "interval", cfg.Interval)

		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-seedCtx.Done():
				logger.Infow("seeder_stopped")
				return
			case <-ticker.C:
				for i := 0; i < cfg.BatchSize; i++ {
					s.step()
				}
			}
		}
	}()

	return cancel
}

// fund hands tokens to every trader, approves custody, and submits the
// native and token deposits.
func (s *seeder) fund() error {
	custody := s.app.Exchange().Custody()
	tok := asset.ForToken(s.cfg.Token)

	for _, trader := range s.traders {
		if err := s.ledger.Transfer(s.cfg.Deployer, trader, s.cfg.GrantToken); err != nil {
			return fmt.Errorf("grant tokens to %s: %w", trader.Hex(), err)
		}
		if err := s.ledger.Approve(trader, custody, s.cfg.GrantToken); err != nil {
			return fmt.Errorf("approve custody for %s: %w", trader.Hex(), err)
		}

		s.submit(&transaction.Tx{
			Type:     transaction.TxTypeDepositNative,
			From:     trader.Hex(),
			Transfer: &transaction.TransferPayload{Asset: asset.Native().String(), Amount: s.cfg.GrantNative},
		})
		s.submit(&transaction.Tx{
			Type:     transaction.TxTypeDepositToken,
			From:     trader.Hex(),
			Transfer: &transaction.TransferPayload{Asset: tok.String(), Amount: s.cfg.GrantToken},
		})
	}
	return nil
}

// step emits one random action: mostly new orders, with occasional fills
// and cancels against the open book.
func (s *seeder) step() {
	r := s.rng.Intn(100)
	switch {
	case r < 60:
		s.makeRandomOrder()
	case r < 85:
		s.fillRandomOrder()
	default:
		s.cancelRandomOrder()
	}
}

func (s *seeder) makeRandomOrder() {
	trader := s.traders[s.rng.Intn(len(s.traders))]
	tok := asset.ForToken(s.cfg.Token)

	amountTok := int64(s.rng.Intn(100) + 1)
	amountNative := amountTok * int64(s.rng.Intn(20)+90) / 100 // price near parity

	order := &transaction.OrderPayload{}
	if s.rng.Intn(2) == 0 {
		// buy tokens with native
		order.AssetWanted = tok.String()
		order.AmountWanted = amountTok
		order.AssetOffered = asset.Native().String()
		order.AmountOffered = amountNative
	} else {
		order.AssetWanted = asset.Native().String()
		order.AmountWanted = amountNative
		order.AssetOffered = tok.String()
		order.AmountOffered = amountTok
	}

	s.submit(&transaction.Tx{
		Type:  transaction.TxTypeMakeOrder,
		From:  trader.Hex(),
		Order: order,
	})
}

func (s *seeder) fillRandomOrder() {
	open := s.app.Exchange().OpenOrders()
	if len(open) == 0 {
		s.makeRandomOrder()
		return
	}
	order := open[s.rng.Intn(len(open))]
	trader := s.traders[s.rng.Intn(len(s.traders))]

	s.submit(&transaction.Tx{
		Type:     transaction.TxTypeFillOrder,
		From:     trader.Hex(),
		OrderRef: &transaction.OrderRefPayload{ID: order.ID},
	})
}

func (s *seeder) cancelRandomOrder() {
	open := s.app.Exchange().OpenOrders()
	if len(open) == 0 {
		s.makeRandomOrder()
		return
	}
	order := open[s.rng.Intn(len(open))]

	s.submit(&transaction.Tx{
		Type:     transaction.TxTypeCancelOrder,
		From:     order.Creator.Hex(),
		OrderRef: &transaction.OrderRefPayload{ID: order.ID},
	})
}

func (s *seeder) submit(tx *transaction.Tx) {
	raw, err := tx.Serialize()
	if err != nil {
		s.logger.Warnw("seeder_marshal_failed", "err", err)
		return
	}
	if err := s.app.SubmitTx(raw); err != nil {
		s.logger.Debugw("seeder_tx_rejected", "type", tx.Type, "err", err)
	}
}
