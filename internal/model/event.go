package model

// EventType identifies a published game event.
type EventType string

const (
	EventRoundStarted EventType = "ROUND_STARTED"
	EventTick         EventType = "MULTIPLIER_TICK"
	EventRoundCrashed EventType = "ROUND_CRASHED"
	EventBetPlaced    EventType = "BET_PLACED"
	EventBetCashedOut EventType = "BET_CASHED_OUT"
)

// Event is the single payload shape pushed to subscribers. Fields not
// relevant to a given type are zero and omitted from JSON.
type Event struct {
	Type            EventType `json:"type"`
	RoundID         string    `json:"round_id"`
	SeedCommitment  string    `json:"seed_commitment,omitempty"`
	SeedReveal      string    `json:"seed_reveal,omitempty"`
	Value           float64   `json:"value,omitempty"`
	FinalMultiplier float64   `json:"final_multiplier,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	BetID           string    `json:"bet_id,omitempty"`
	Amount          int64     `json:"amount,omitempty"`
	Payout          int64     `json:"payout,omitempty"`
}
