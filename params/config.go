package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Exchange struct {
	// FeeAccount receives the taker fee charged on every fill.
	FeeAccount common.Address
	// FeePercent is a whole percentage (10 means 10%). Fixed at construction.
	FeePercent int64
	// CustodyAccount is the exchange's own address on the token ledgers.
	// Token deposits pull funds into it; withdrawals pay out of it.
	CustodyAccount common.Address
}

type Node struct {
	// DataDir holds the pebble database and the event journal.
	DataDir string
	// MinBlockTime throttles block production so an idle devnet node does
	// not spin producing empty blocks.
	//
	// Recommended values:
	//   - Devnet (single node):  200ms
	//   - Load testing:          50ms
	MinBlockTime time.Duration
}

type API struct {
	Addr string
}

type Config struct {
	Exchange Exchange
	Node     Node
	API      API
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			FeeAccount:     common.HexToAddress("0xFEE0000000000000000000000000000000000000"),
			FeePercent:     10,
			CustodyAccount: common.HexToAddress("0xE8c0000000000000000000000000000000000001"),
		},
		Node: Node{
			DataDir:      "data",
			MinBlockTime: 200 * time.Millisecond,
		},
		API: API{
			Addr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if fee := os.Getenv("EXCHANGE_FEE_ACCOUNT"); fee != "" && common.IsHexAddress(fee) {
		cfg.Exchange.FeeAccount = common.HexToAddress(fee)
	}

	if pct := os.Getenv("EXCHANGE_FEE_PERCENT"); pct != "" {
		if n, err := strconv.ParseInt(pct, 10, 64); err == nil && n >= 0 {
			cfg.Exchange.FeePercent = n
		}
	}

	if custody := os.Getenv("EXCHANGE_CUSTODY_ACCOUNT"); custody != "" && common.IsHexAddress(custody) {
		cfg.Exchange.CustodyAccount = common.HexToAddress(custody)
	}

	if dir := os.Getenv("NODE_DATA_DIR"); dir != "" {
		cfg.Node.DataDir = dir
	}

	if minBlock := os.Getenv("NODE_MIN_BLOCK_TIME_MS"); minBlock != "" {
		if ms, err := strconv.Atoi(minBlock); err == nil {
			cfg.Node.MinBlockTime = time.Duration(ms) * time.Millisecond
		}
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}

	return cfg
}
