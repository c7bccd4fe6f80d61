package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/params"
	"github.com/tokendex/tokendex/pkg/abci"
	"github.com/tokendex/tokendex/pkg/api"
	"github.com/tokendex/tokendex/pkg/app/core/exchange"
	"github.com/tokendex/tokendex/pkg/app/core/mempool"
	"github.com/tokendex/tokendex/pkg/app/core/token"
	"github.com/tokendex/tokendex/pkg/app/dex"
	"github.com/tokendex/tokendex/pkg/storage"
	"github.com/tokendex/tokendex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "node.log")
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Token ledgers ----
	// One demo token; its supply is minted to the deployer, who hands it out
	// (the seeder does this in demo mode).
	deployer := common.HexToAddress("0xDE91000000000000000000000000000000000001")
	demoToken := token.New("Demo Token", "DEMO", 6, 1_000_000_000, deployer)
	tokenAddr := common.HexToAddress("0x70ce000000000000000000000000000000000001")

	registry := token.NewRegistry()
	if err := registry.Register(tokenAddr, demoToken); err != nil {
		sugar.Fatalw("token_register_failed", "err", err)
	}

	// ---- Exchange engine (pebble-backed) ----
	ex, err := exchange.NewWithStore(exchange.Config{
		FeeAccount: cfg.Exchange.FeeAccount,
		FeePercent: cfg.Exchange.FeePercent,
		Custody:    cfg.Exchange.CustodyAccount,
		Tokens:     registry,
		Clock:      util.RealClock{},
	}, filepath.Join(cfg.Node.DataDir, "ledger"))
	if err != nil {
		sugar.Fatalw("exchange_init_failed", "err", err)
	}
	defer ex.Close()

	sugar.Infow("exchange_initialized",
		"fee_account", cfg.Exchange.FeeAccount.Hex(),
		"fee_percent", cfg.Exchange.FeePercent,
		"orders", ex.OrderCount())

	// ---- Event journal ----
	journal, err := storage.NewJournal(filepath.Join(cfg.Node.DataDir, "events.log"))
	if err != nil {
		sugar.Fatalw("journal_init_failed", "err", err)
	}
	defer journal.Close()
	ex.AddSink(journal)

	// Structured event log alongside the journal
	ex.AddSink(exchange.SinkFunc(func(ev exchange.Event) {
		sugar.Debugw("exchange_event", "kind", ev.Kind())
	}))

	// ---- App + sequencer ----
	app := dex.NewApp(mempool.NewMempool(), ex, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(app, registry)
	ex.AddSink(apiServer.Sink())

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.Addr)
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// ---- Demo seeder (optional) ----
	// Enable with: ENABLE_SEED=true
	if os.Getenv("ENABLE_SEED") == "true" {
		seedCfg := dex.DefaultSeederConfig(tokenAddr, deployer)
		cancelSeeder := dex.StartSeeder(ctx, app, demoToken, seedCfg, sugar)
		defer cancelSeeder()
		sugar.Infow("seeder_enabled", "traders", seedCfg.NumTraders)
	}

	sequencer := &abci.LocalSequencer{
		App:      app,
		Interval: cfg.Node.MinBlockTime,
		Clock:    util.RealClock{},
		Logger:   sugar,
	}

	sugar.Infow("node_starting", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds())

	go func() {
		if err := sequencer.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("sequencer_failed", "err", err)
		}
	}()

	// Progress logging loop
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Infow("node_stopping")
			return
		case <-ticker.C:
			sugar.Infow("node_progress",
				"height", sequencer.Height(),
				"orders", ex.OrderCount(),
				"mempool", app.Mempool().Len())
		}
	}
}
