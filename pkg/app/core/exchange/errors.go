package exchange

import "errors"

// Every failure below aborts the requested operation with zero side
// effects. Callers match with errors.Is; operations wrap these with
// context via fmt.Errorf.
var (
	// ErrInvalidAsset: the native sentinel was used where a token asset is
	// required (native value moves only through DepositNative/WithdrawNative).
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrInsufficientBalance: a withdrawal or fill would drive a balance
	// negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferFailed: the fungible token ledger refused a delegated
	// transfer (no allowance, insufficient funds, unknown token).
	ErrTransferFailed = errors.New("transfer failed")

	// ErrOrderNotFound: the referenced id has no order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized: cancel attempted by an account other than the
	// order's creator.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOrderAlreadyFinalized: fill or cancel attempted on an order that
	// is already filled or already cancelled.
	ErrOrderAlreadyFinalized = errors.New("order already finalized")
)
