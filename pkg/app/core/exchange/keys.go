package exchange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// Pebble key schema.
// Design principles:
// 1. Prefix-based for range scans (all balances, all orders)
// 2. Zero-padded ids for lexicographic ordering
// 3. (asset, account) as the balance primary key

const (
	prefixBalance = "bal:"  // balance table entries
	prefixOrder   = "ord:"  // immutable order records
	prefixStatus  = "stat:" // per-order filled/cancelled flags
	keyOrderCount = "meta:ordercount"
)

// balanceKey returns the key for a balance entry.
// Format: "bal:{asset}:{address}"
// Example: "bal:native:0x742d35Cc..." or "bal:0xToken...:0x742d35Cc..."
func balanceKey(a asset.ID, account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, a, account.Hex()))
}

// orderKey returns the key for an order record.
// Format: "ord:{id}" with the id zero-padded to 20 digits.
func orderKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// statusKey returns the key for an order's lifecycle flags.
// Format: "stat:{id}", padded like orderKey.
func statusKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixStatus, id))
}

// parseBalanceKey is the inverse of balanceKey, used when scanning.
func parseBalanceKey(key []byte) (asset.ID, common.Address, error) {
	rest, ok := strings.CutPrefix(string(key), prefixBalance)
	if !ok {
		return asset.ID{}, common.Address{}, fmt.Errorf("not a balance key: %q", key)
	}
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return asset.ID{}, common.Address{}, fmt.Errorf("malformed balance key: %q", key)
	}
	a, err := asset.Parse(rest[:i])
	if err != nil {
		return asset.ID{}, common.Address{}, fmt.Errorf("malformed balance key %q: %w", key, err)
	}
	addrHex := rest[i+1:]
	if !common.IsHexAddress(addrHex) {
		return asset.ID{}, common.Address{}, fmt.Errorf("invalid address in key: %q", key)
	}
	return a, common.HexToAddress(addrHex), nil
}

// parseStatusKey extracts the order id from a status key.
func parseStatusKey(key []byte) (int64, error) {
	rest, ok := strings.CutPrefix(string(key), prefixStatus)
	if !ok {
		return 0, fmt.Errorf("not a status key: %q", key)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed status key %q: %w", key, err)
	}
	return id, nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
