package store

import "skycrash/internal/model"

// Store persists game history for audit and verification. Rounds and bets
// are written once, in their terminal state; transactions are append-only,
// one per balance mutation.
type Store interface {
	RecordRound(rec *model.Round) error
	RecordBet(bet *model.Bet) error
	RecordTransaction(tx *model.Transaction) error

	// Round looks up a settled round by id, for commit-reveal verification.
	Round(id string) (*model.Round, error)

	// TransactionTotals returns the signed sum of recorded transactions per
	// user, used by the reconciliation job.
	TransactionTotals() (map[string]int64, error)

	Close() error
}
