package ledger

import "errors"

var (
	// ErrInvalidTradeInput marks caller errors (non-positive quantity or
	// price). Not retryable.
	ErrInvalidTradeInput = errors.New("invalid trade input")

	// ErrPersistenceFailure marks a failed write to the trade ledger. The
	// trade is considered not executed; no partial state is left behind.
	ErrPersistenceFailure = errors.New("persistence failure")
)
