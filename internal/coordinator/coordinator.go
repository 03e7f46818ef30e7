// Package coordinator runs the round lifecycle. One goroutine owns the
// current round and is the only writer of its phase; the ledger and the
// HTTP surface observe it through thread-safe accessors.
package coordinator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"skycrash/internal/broadcast"
	"skycrash/internal/fair"
	"skycrash/internal/ledger"
	"skycrash/internal/model"
	"skycrash/internal/round"
	"skycrash/internal/store"
)

// Config holds the round timing parameters.
type Config struct {
	BettingWindow time.Duration // how long PENDING accepts bets
	TickInterval  time.Duration // multiplier broadcast cadence
	CoolDown      time.Duration // pause between SETTLED and the next round
	GrowthRate    float64       // multiplier gained per second of ascent
}

// Coordinator owns the single non-terminal round.
type Coordinator struct {
	cfg   Config
	hub   *broadcast.Hub
	store store.Store
	cron  *cron.Cron

	mu      sync.RWMutex
	current *round.Round
}

// New creates a coordinator. Run must be called to start the round loop.
func New(cfg Config, hub *broadcast.Hub, st store.Store) *Coordinator {
	return &Coordinator{
		cfg:   cfg,
		hub:   hub,
		store: st,
		cron:  cron.New(),
	}
}

// Round resolves a round id to the live state machine, for the ledger's
// phase checks. Only the current round is resolvable.
func (c *Coordinator) Round(id string) *round.Round {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil && c.current.ID() == id {
		return c.current
	}
	return nil
}

// ActiveRound returns the public snapshot of the current round.
func (c *Coordinator) ActiveRound() (model.RoundSnapshot, bool) {
	c.mu.RLock()
	r := c.current
	c.mu.RUnlock()
	if r == nil {
		return model.RoundSnapshot{}, false
	}
	return r.Snapshot(time.Now()), true
}

// Run drives rounds until ctx is cancelled. It is the single writer of
// round phase; the ledger is invoked here for settlement only.
func (c *Coordinator) Run(ctx context.Context, led *ledger.Ledger) {
	log.Println("[INFO] coordinator started")
	for {
		if err := c.runRound(ctx, led); err != nil {
			log.Printf("[ERROR] round aborted: %v", err)
		}
		if !sleep(ctx, c.cfg.CoolDown) {
			log.Println("[INFO] coordinator stopped")
			return
		}
	}
}

func (c *Coordinator) runRound(ctx context.Context, led *ledger.Ledger) error {
	seed, err := fair.NewServerSeed()
	if err != nil {
		return err
	}
	id := uuid.NewString()
	commitment := fair.Commitment(seed)
	crashPoint := fair.CrashPoint(seed, id)

	r := round.New(id, seed, commitment, crashPoint, c.cfg.GrowthRate, time.Now())
	c.mu.Lock()
	c.current = r
	c.mu.Unlock()

	log.Printf("[INFO] round %s open, commitment %s", id, commitment)
	c.hub.Publish(model.Event{
		Type: model.EventRoundStarted, RoundID: id, SeedCommitment: commitment,
	})

	// Betting window.
	if !sleep(ctx, c.cfg.BettingWindow) {
		return ctx.Err()
	}

	if err := r.BeginAscent(time.Now()); err != nil {
		return err
	}
	log.Printf("[INFO] round %s ascending", id)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m := r.MultiplierAt(now)
			if m >= crashPoint {
				c.crash(r, led, now)
				return nil
			}
			c.hub.Publish(model.Event{
				Type: model.EventTick, RoundID: id, Value: m,
			})
		}
	}
}

// crash applies the hard ASCENDING -> CRASHED barrier, reveals the seed,
// and settles the leftover bets.
func (c *Coordinator) crash(r *round.Round, led *ledger.Ledger, now time.Time) {
	if err := r.Crash(now); err != nil {
		log.Printf("[ERROR] crash transition for round %s: %v", r.ID(), err)
		return
	}

	c.hub.Publish(model.Event{
		Type:            model.EventRoundCrashed,
		RoundID:         r.ID(),
		FinalMultiplier: r.CrashPoint(),
		SeedReveal:      r.Seed(),
	})

	lost := led.SettleRound(r.ID())
	if err := r.Settle(); err != nil {
		log.Printf("[ERROR] settle transition for round %s: %v", r.ID(), err)
	}

	rec := r.Record()
	if err := c.store.RecordRound(&rec); err != nil {
		log.Printf("[ERROR] record round %s: %v", r.ID(), err)
	}

	log.Printf("[INFO] round %s crashed at %.2fx, %d bets forfeited", r.ID(), r.CrashPoint(), lost)
}

// RegisterReconciliation schedules the ledger audit on the given cron
// expression and starts the cron runner.
func (c *Coordinator) RegisterReconciliation(expr string, led *ledger.Ledger) error {
	if _, err := c.cron.AddFunc(expr, func() { c.Reconcile(led) }); err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// StopJobs stops the cron runner.
func (c *Coordinator) StopJobs() {
	c.cron.Stop()
}

// Reconcile replays the transaction audit log against live balances and
// logs any drift. Returns the number of mismatched accounts.
func (c *Coordinator) Reconcile(led *ledger.Ledger) int {
	totals, err := c.store.TransactionTotals()
	if err != nil {
		log.Printf("[ERROR] reconcile: load transaction totals: %v", err)
		return 0
	}

	balances := led.Balances()
	mismatched := 0
	for userID, balance := range balances {
		if expected := totals[userID]; expected != balance {
			log.Printf("[ERROR] reconcile: user %s balance %d, transactions sum %d", userID, balance, expected)
			mismatched++
		}
	}
	if mismatched == 0 {
		log.Printf("[INFO] reconcile: %d accounts consistent", len(balances))
	}
	return mismatched
}

// sleep waits for d or until ctx is cancelled; reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
