// Package round holds the per-round state machine. All phase reads and
// transitions go through one mutex, which doubles as the crash barrier: a
// cash-out quote and the crash transition can never interleave.
package round

import (
	"errors"
	"math"
	"sync"
	"time"

	"skycrash/internal/model"
)

var (
	// ErrBettingClosed rejects placement or cancellation outside PENDING.
	ErrBettingClosed = errors.New("betting window closed")
	// ErrNotAscending rejects a cash-out before the ascent starts.
	ErrNotAscending = errors.New("round not ascending")
	// ErrCrashed rejects a cash-out at or past the crash instant.
	ErrCrashed = errors.New("round crashed")
	// ErrBadTransition rejects any backwards or skipping phase change.
	ErrBadTransition = errors.New("invalid phase transition")
)

// Round is one play of the game. The zero value is not usable; construct
// with New.
type Round struct {
	id         string
	seed       string
	commitment string
	crashPoint float64
	growthRate float64 // multiplier gained per second of ascent

	mu         sync.Mutex
	phase      model.Phase
	startedAt  time.Time
	ascendedAt time.Time
	crashedAt  time.Time
}

// New creates a round in PENDING with its crash point already fixed.
func New(id, seed, commitment string, crashPoint, growthRate float64, now time.Time) *Round {
	return &Round{
		id:         id,
		seed:       seed,
		commitment: commitment,
		crashPoint: crashPoint,
		growthRate: growthRate,
		phase:      model.PhasePending,
		startedAt:  now,
	}
}

func (r *Round) ID() string         { return r.id }
func (r *Round) Commitment() string { return r.commitment }

// Seed returns the raw server seed. Callers must not expose it before the
// round has crashed.
func (r *Round) Seed() string { return r.seed }

// CrashPoint returns the pre-generated crash multiplier. Hidden from
// clients until the reveal.
func (r *Round) CrashPoint() float64 { return r.crashPoint }

// Phase returns the current phase.
func (r *Round) Phase() model.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// rawMultiplier computes the uncapped curve value for the instant now.
// Caller holds r.mu.
func (r *Round) rawMultiplier(now time.Time) float64 {
	if r.ascendedAt.IsZero() || now.Before(r.ascendedAt) {
		return 1.0
	}
	return 1.0 + r.growthRate*now.Sub(r.ascendedAt).Seconds()
}

// floor2 truncates to two decimals. Truncation, not rounding: a displayed
// or quoted multiplier must never exceed the true curve value.
func floor2(m float64) float64 {
	return math.Floor(m*100) / 100
}

// MultiplierAt returns the authoritative display multiplier for now,
// capped at the crash point once reached.
func (r *Round) MultiplierAt(now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.rawMultiplier(now)
	if m >= r.crashPoint {
		return r.crashPoint
	}
	return floor2(m)
}

// AcceptBet atomically checks that bets are still being taken.
func (r *Round) AcceptBet() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != model.PhasePending {
		return ErrBettingClosed
	}
	return nil
}

// AcceptCancel atomically checks that a bet may still be withdrawn.
// Cancellation is only legal before the ascent starts.
func (r *Round) AcceptCancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != model.PhasePending {
		return ErrBettingClosed
	}
	return nil
}

// CashoutQuote returns the multiplier a cash-out accepted at now is paid
// at. It fails with ErrCrashed if the round has crashed, or if the curve
// has already reached the crash point even though the tick loop has not
// flipped the phase yet: a quote at or beyond the crash point is never
// honored.
func (r *Round) CashoutQuote(now time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phase {
	case model.PhasePending:
		return 0, ErrNotAscending
	case model.PhaseCrashed, model.PhaseSettled:
		return 0, ErrCrashed
	}

	m := r.rawMultiplier(now)
	if m >= r.crashPoint {
		return 0, ErrCrashed
	}
	return floor2(m), nil
}

// BeginAscent moves PENDING to ASCENDING and starts the multiplier clock.
func (r *Round) BeginAscent(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != model.PhasePending {
		return ErrBadTransition
	}
	r.phase = model.PhaseAscending
	r.ascendedAt = now
	return nil
}

// Crash moves ASCENDING to CRASHED. This is the hard barrier: once it
// returns, every subsequent CashoutQuote fails.
func (r *Round) Crash(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != model.PhaseAscending {
		return ErrBadTransition
	}
	r.phase = model.PhaseCrashed
	r.crashedAt = now
	return nil
}

// Settle moves CRASHED to SETTLED after the ledger has marked the
// remaining active bets lost.
func (r *Round) Settle() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != model.PhaseCrashed {
		return ErrBadTransition
	}
	r.phase = model.PhaseSettled
	return nil
}

// Snapshot returns the public view of the round at now. The seed and crash
// point stay hidden.
func (r *Round) Snapshot(now time.Time) model.RoundSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := 1.0
	if r.phase == model.PhaseAscending {
		raw := r.rawMultiplier(now)
		if raw >= r.crashPoint {
			raw = r.crashPoint
		}
		m = floor2(raw)
	} else if r.phase.Terminal() {
		m = r.crashPoint
	}

	return model.RoundSnapshot{
		RoundID:           r.id,
		Phase:             r.phase,
		CurrentMultiplier: m,
		StartedAt:         r.startedAt,
		SeedCommitment:    r.commitment,
	}
}

// Record returns the persistable round row. The seed is revealed only once
// the round is terminal.
func (r *Round) Record() model.Round {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := model.Round{
		ID:             r.id,
		CrashPoint:     r.crashPoint,
		SeedCommitment: r.commitment,
		Phase:          r.phase,
		StartedAt:      r.startedAt,
		AscendedAt:     r.ascendedAt,
		CrashedAt:      r.crashedAt,
	}
	if r.phase.Terminal() {
		rec.SeedReveal = r.seed
	}
	return rec
}
