package model

import "time"

// TransactionType classifies a balance mutation.
type TransactionType string

const (
	TxDeposit TransactionType = "deposit" // external funding credited
	TxBet     TransactionType = "bet"     // stake debited at placement
	TxWin     TransactionType = "win"     // payout credited at cash-out
	TxRefund  TransactionType = "refund"  // stake returned on cancellation
)

// SignedAmount returns the balance delta this transaction type applies:
// debits are negative, credits positive.
func (t TransactionType) SignedAmount(amount int64) int64 {
	if t == TxBet {
		return -amount
	}
	return amount
}

// Transaction is one append-only audit record per balance mutation. The
// reconciliation job replays these against live balances.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
