package ledger

import (
	"errors"
	"fmt"
)

// Error taxonomy for ledger operations. Callers match with errors.Is; every
// failed operation leaves no observable balance or status change.
var (
	// ErrValidation rejects malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientFunds rejects a stake exceeding the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrState rejects an operation in the wrong round or bet phase.
	ErrState = errors.New("invalid state")
	// ErrNotFound rejects an operation on an unknown bet.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateBet rejects a second active bet on the same round.
	ErrDuplicateBet = errors.New("bet already placed for this round")
	// ErrConflict reports a lost optimistic race; safe to retry once.
	ErrConflict = errors.New("concurrency conflict")

	// ErrRoundCrashed is the distinguishable too-late cash-out case, so
	// callers can present "round already crashed" rather than a retryable
	// failure. It matches ErrState under errors.Is.
	ErrRoundCrashed = fmt.Errorf("round already crashed: %w", ErrState)
)
