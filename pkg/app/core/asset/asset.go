// Package asset identifies the values the exchange can custody: the chain's
// native unit, or a fungible token managed by an external ledger.
package asset

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID is a tagged asset identifier. The zero value is invalid; construct via
// Native() or ForToken(). ID is comparable and safe to use as a map key.
type ID struct {
	kind  kind
	token common.Address
}

type kind uint8

const (
	kindInvalid kind = iota
	kindNative
	kindToken
)

// Native returns the identifier for the chain-native asset.
func Native() ID {
	return ID{kind: kindNative}
}

// ForToken returns the identifier for the fungible token at addr.
func ForToken(addr common.Address) ID {
	return ID{kind: kindToken, token: addr}
}

func (a ID) IsNative() bool { return a.kind == kindNative }
func (a ID) IsToken() bool  { return a.kind == kindToken }

// TokenAddress returns the token's ledger address. Only meaningful when
// IsToken reports true.
func (a ID) TokenAddress() common.Address { return a.token }

func (a ID) String() string {
	switch a.kind {
	case kindNative:
		return "native"
	case kindToken:
		return a.token.Hex()
	default:
		return "invalid"
	}
}

// Parse converts the string form back into an ID. Accepts "native" or a
// 0x-prefixed token address.
func Parse(s string) (ID, error) {
	if s == "native" {
		return Native(), nil
	}
	if common.IsHexAddress(s) {
		return ForToken(common.HexToAddress(s)), nil
	}
	return ID{}, fmt.Errorf("invalid asset %q", s)
}

func (a ID) MarshalJSON() ([]byte, error) {
	if a.kind == kindInvalid {
		return nil, fmt.Errorf("cannot marshal invalid asset")
	}
	return json.Marshal(a.String())
}

func (a *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	id, err := Parse(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// MarshalText lets IDs act as JSON map keys in persisted state.
func (a ID) MarshalText() ([]byte, error) {
	if a.kind == kindInvalid {
		return nil, fmt.Errorf("cannot marshal invalid asset")
	}
	return []byte(a.String()), nil
}

func (a *ID) UnmarshalText(b []byte) error {
	id, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = id
	return nil
}
