package dex

import (
	"fmt"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
	"github.com/tokendex/tokendex/pkg/app/core/transaction"
)

// applyTx parses and executes one transaction against the exchange.
// Any error leaves the ledger exactly as it was.
func (a *App) applyTx(raw []byte) error {
	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return err
	}
	caller, err := tx.Caller()
	if err != nil {
		return err
	}

	switch tx.Type {
	case transaction.TxTypeDepositNative:
		return a.exchange.DepositNative(caller, tx.Transfer.Amount)

	case transaction.TxTypeWithdrawNative:
		return a.exchange.WithdrawNative(caller, tx.Transfer.Amount)

	case transaction.TxTypeDepositToken:
		id, err := asset.Parse(tx.Transfer.Asset)
		if err != nil {
			return err
		}
		return a.exchange.DepositToken(caller, id, tx.Transfer.Amount)

	case transaction.TxTypeWithdrawToken:
		id, err := asset.Parse(tx.Transfer.Asset)
		if err != nil {
			return err
		}
		return a.exchange.WithdrawToken(caller, id, tx.Transfer.Amount)

	case transaction.TxTypeMakeOrder:
		wanted, err := asset.Parse(tx.Order.AssetWanted)
		if err != nil {
			return err
		}
		offered, err := asset.Parse(tx.Order.AssetOffered)
		if err != nil {
			return err
		}
		_, err = a.exchange.MakeOrder(caller, wanted, tx.Order.AmountWanted, offered, tx.Order.AmountOffered)
		return err

	case transaction.TxTypeCancelOrder:
		return a.exchange.CancelOrder(caller, tx.OrderRef.ID)

	case transaction.TxTypeFillOrder:
		return a.exchange.FillOrder(caller, tx.OrderRef.ID)

	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}
}
