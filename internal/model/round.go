package model

import "time"

// Phase is the lifecycle phase of a round.
type Phase string

const (
	PhasePending   Phase = "PENDING"   // betting window open, no multiplier growth
	PhaseAscending Phase = "ASCENDING" // multiplier growing, cash-out allowed
	PhaseCrashed   Phase = "CRASHED"   // ascent terminated, cash-out closed
	PhaseSettled   Phase = "SETTLED"   // remaining active bets forfeited
)

// Terminal reports whether the phase is one a round never leaves.
func (p Phase) Terminal() bool {
	return p == PhaseCrashed || p == PhaseSettled
}

// Round is the persisted record of one complete play of the game.
type Round struct {
	ID             string    `json:"id"`
	CrashPoint     float64   `json:"crash_point"`
	SeedCommitment string    `json:"seed_commitment"`
	SeedReveal     string    `json:"seed_reveal,omitempty"`
	Phase          Phase     `json:"phase"`
	StartedAt      time.Time `json:"started_at"`
	AscendedAt     time.Time `json:"ascended_at"`
	CrashedAt      time.Time `json:"crashed_at"`
}

// RoundSnapshot is the public view of the active round.
type RoundSnapshot struct {
	RoundID           string    `json:"round_id"`
	Phase             Phase     `json:"phase"`
	CurrentMultiplier float64   `json:"current_multiplier"`
	StartedAt         time.Time `json:"started_at"`
	SeedCommitment    string    `json:"seed_commitment"`
}
