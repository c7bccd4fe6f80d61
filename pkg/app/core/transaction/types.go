// Package transaction defines the JSON envelope the substrate delivers to
// the exchange app. Every envelope names its caller; signature checking is
// the substrate's concern, not the ledger's.
package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
)

// TxType represents the type of transaction
type TxType string

const (
	TxTypeDepositNative  TxType = "deposit_native"
	TxTypeWithdrawNative TxType = "withdraw_native"
	TxTypeDepositToken   TxType = "deposit_token"
	TxTypeWithdrawToken  TxType = "withdraw_token"
	TxTypeMakeOrder      TxType = "make_order"
	TxTypeCancelOrder    TxType = "cancel_order"
	TxTypeFillOrder      TxType = "fill_order"
)

// Tx is the wire envelope for every exchange operation.
type Tx struct {
	Type TxType `json:"type"`
	From string `json:"from"` // caller address (0x...)

	Transfer *TransferPayload `json:"transfer,omitempty"` // deposits and withdrawals
	Order    *OrderPayload    `json:"order,omitempty"`    // make_order
	OrderRef *OrderRefPayload `json:"orderRef,omitempty"` // cancel_order / fill_order
}

// TransferPayload carries a deposit or withdrawal.
type TransferPayload struct {
	Asset  string `json:"asset"` // "native" or token address
	Amount int64  `json:"amount"`
}

// OrderPayload carries the four legs of a new order.
type OrderPayload struct {
	AssetWanted   string `json:"assetWanted"`
	AmountWanted  int64  `json:"amountWanted"`
	AssetOffered  string `json:"assetOffered"`
	AmountOffered int64  `json:"amountOffered"`
}

// OrderRefPayload references an existing order by id.
type OrderRefPayload struct {
	ID int64 `json:"id"`
}

// Serialize converts the tx to JSON bytes.
func (tx *Tx) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into a Tx.
func Deserialize(data []byte) (*Tx, error) {
	var tx Tx
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Caller returns the parsed caller address.
func (tx *Tx) Caller() (common.Address, error) {
	if !common.IsHexAddress(tx.From) {
		return common.Address{}, fmt.Errorf("invalid caller address: %q", tx.From)
	}
	return common.HexToAddress(tx.From), nil
}

// Validate performs structural validation on the envelope.
func (tx *Tx) Validate() error {
	if tx.Type == "" {
		return fmt.Errorf("missing transaction type")
	}
	if !common.IsHexAddress(tx.From) {
		return fmt.Errorf("missing or invalid caller address")
	}

	switch tx.Type {
	case TxTypeDepositNative, TxTypeWithdrawNative:
		if tx.Transfer == nil {
			return fmt.Errorf("%s requires transfer payload", tx.Type)
		}
		if tx.Transfer.Amount < 0 {
			return fmt.Errorf("negative amount: %d", tx.Transfer.Amount)
		}

	case TxTypeDepositToken, TxTypeWithdrawToken:
		if tx.Transfer == nil {
			return fmt.Errorf("%s requires transfer payload", tx.Type)
		}
		if tx.Transfer.Amount < 0 {
			return fmt.Errorf("negative amount: %d", tx.Transfer.Amount)
		}
		if _, err := asset.Parse(tx.Transfer.Asset); err != nil {
			return fmt.Errorf("%s: %w", tx.Type, err)
		}

	case TxTypeMakeOrder:
		if tx.Order == nil {
			return fmt.Errorf("make_order requires order payload")
		}
		if _, err := asset.Parse(tx.Order.AssetWanted); err != nil {
			return fmt.Errorf("make_order assetWanted: %w", err)
		}
		if _, err := asset.Parse(tx.Order.AssetOffered); err != nil {
			return fmt.Errorf("make_order assetOffered: %w", err)
		}
		if tx.Order.AmountWanted < 0 || tx.Order.AmountOffered < 0 {
			return fmt.Errorf("negative order amounts")
		}

	case TxTypeCancelOrder, TxTypeFillOrder:
		if tx.OrderRef == nil {
			return fmt.Errorf("%s requires orderRef payload", tx.Type)
		}
		if tx.OrderRef.ID <= 0 {
			return fmt.Errorf("invalid order id: %d", tx.OrderRef.ID)
		}

	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}

	return nil
}

// ParseTransaction deserializes and validates in one step.
func ParseTransaction(data []byte) (*Tx, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}
