// Package core re-exports the ledger subpackages under one import for
// callers that want the whole engine surface.
package core

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
	"github.com/tokendex/tokendex/pkg/app/core/exchange"
	"github.com/tokendex/tokendex/pkg/app/core/mempool"
	"github.com/tokendex/tokendex/pkg/app/core/token"
)

// From asset package
type AssetID = asset.ID

func NativeAsset() AssetID                   { return asset.Native() }
func TokenAsset(addr common.Address) AssetID { return asset.ForToken(addr) }
func ParseAsset(s string) (AssetID, error)   { return asset.Parse(s) }

// From exchange package
type (
	Exchange       = exchange.Exchange
	ExchangeConfig = exchange.Config
	Order          = exchange.Order
	OrderStatus    = exchange.OrderStatus
	Event          = exchange.Event
)

func NewExchange(cfg ExchangeConfig) *Exchange {
	return exchange.New(cfg)
}

func NewExchangeWithStore(cfg ExchangeConfig, dbPath string) (*Exchange, error) {
	return exchange.NewWithStore(cfg, dbPath)
}

// From token package
type (
	Token         = token.Token
	TokenLedger   = token.Ledger
	TokenRegistry = token.Registry
)

func NewToken(name, symbol string, decimals uint8, supply int64, deployer common.Address) *Token {
	return token.New(name, symbol, decimals, supply, deployer)
}

func NewTokenRegistry() *TokenRegistry {
	return token.NewRegistry()
}

// From mempool package
type Mempool = mempool.Mempool

func NewMempool() *Mempool {
	return mempool.NewMempool()
}
