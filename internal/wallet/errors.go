package wallet

import "errors"

// Order and valuation failures. All are recoverable: callers report them to
// the user and the engine keeps running on unchanged state.
var (
	// ErrInvalidAmount rejects zero, negative or non-finite order amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds rejects a buy whose cost exceeds available cash.
	// Fills are all-or-nothing; there are no partial fills.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientAsset rejects a sell larger than the held position.
	ErrInsufficientAsset = errors.New("insufficient asset")

	// ErrPriceUnavailable guards valuation and sizing against a zero or
	// unset reference price.
	ErrPriceUnavailable = errors.New("price unavailable")
)
