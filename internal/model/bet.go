package model

import "time"

// BetStatus is the settlement status of a bet. Transitions are
// one-directional: active bets end as won, lost or cancelled and never
// change again.
type BetStatus string

const (
	BetActive    BetStatus = "active"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetCancelled BetStatus = "cancelled"
)

// Bet records a single stake on a single round. Amount and Payout are in
// cents; CashOutMultiplier and Payout are set only when Status is won.
type Bet struct {
	ID                string    `json:"id"`
	RoundID           string    `json:"round_id"`
	UserID            string    `json:"user_id"`
	Amount            int64     `json:"amount"`
	Status            BetStatus `json:"status"`
	CashOutMultiplier float64   `json:"cash_out_multiplier,omitempty"`
	Payout            int64     `json:"payout,omitempty"`
	PlacedAt          time.Time `json:"placed_at"`
	CashedOutAt       time.Time `json:"cashed_out_at,omitempty"`
}
