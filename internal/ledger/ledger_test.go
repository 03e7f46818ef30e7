package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"skycrash/internal/model"
	"skycrash/internal/round"
	"skycrash/internal/store"
)

// stubRounds resolves a fixed set of rounds, standing in for the
// coordinator.
type stubRounds struct {
	rounds map[string]*round.Round
}

func (s *stubRounds) Round(id string) *round.Round {
	return s.rounds[id]
}

func newTestLedger(rounds ...*round.Round) (*Ledger, *stubRounds) {
	src := &stubRounds{rounds: make(map[string]*round.Round)}
	for _, r := range rounds {
		src.rounds[r.ID()] = r
	}
	return New(store.NewNoopStore(), src, nil, Limits{}), src
}

func pendingRound(id string) *round.Round {
	return round.New(id, "seed", "commitment", 10.0, 1.0, time.Now())
}

// ascendingRound returns a round already one second into its ascent, so
// quotes land near 2.00x with a 1.0/s growth rate.
func ascendingRound(id string, crashPoint float64) *round.Round {
	t0 := time.Now().Add(-time.Second)
	r := round.New(id, "seed", "commitment", crashPoint, 1.0, t0)
	if err := r.BeginAscent(t0); err != nil {
		panic(err)
	}
	return r
}

func TestPlaceBet_DebitsAndOpensBet(t *testing.T) {
	led, _ := newTestLedger(pendingRound("rx"))
	if _, err := led.Deposit("alice", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	betID, balance, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if balance != 50 {
		t.Errorf("balance after placement = %d, want 50", balance)
	}

	bet, err := led.Bet(betID, "alice")
	if err != nil {
		t.Fatalf("lookup bet: %v", err)
	}
	if bet.Status != model.BetActive || bet.Amount != 50 || bet.RoundID != "rx" {
		t.Errorf("bet = %+v", bet)
	}
}

func TestPlaceBet_Validation(t *testing.T) {
	led, _ := newTestLedger(pendingRound("rx"))
	led.Deposit("alice", 1000)

	tests := []struct {
		name    string
		amount  int64
		roundID string
		want    error
	}{
		{"zero amount", 0, "rx", ErrValidation},
		{"negative amount", -5, "rx", ErrValidation},
		{"unknown round", 50, "nope", ErrState},
		{"over balance", 5000, "rx", ErrInsufficientFunds},
	}
	for _, tt := range tests {
		_, _, err := led.PlaceBet("alice", tt.amount, tt.roundID)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestPlaceBet_Limits(t *testing.T) {
	src := &stubRounds{rounds: map[string]*round.Round{"rx": pendingRound("rx")}}
	led := New(store.NewNoopStore(), src, nil, Limits{MinBet: 10, MaxBet: 100})
	led.Deposit("alice", 1000)

	if _, _, err := led.PlaceBet("alice", 5, "rx"); !errors.Is(err, ErrValidation) {
		t.Errorf("below minimum: got %v, want ErrValidation", err)
	}
	if _, _, err := led.PlaceBet("alice", 500, "rx"); !errors.Is(err, ErrValidation) {
		t.Errorf("above maximum: got %v, want ErrValidation", err)
	}
	if _, _, err := led.PlaceBet("alice", 50, "rx"); err != nil {
		t.Errorf("within limits: %v", err)
	}
}

func TestPlaceBet_Duplicate(t *testing.T) {
	led, _ := newTestLedger(pendingRound("rx"))
	led.Deposit("alice", 1000)

	if _, _, err := led.PlaceBet("alice", 50, "rx"); err != nil {
		t.Fatalf("first bet: %v", err)
	}
	if _, _, err := led.PlaceBet("alice", 50, "rx"); !errors.Is(err, ErrDuplicateBet) {
		t.Errorf("second bet: got %v, want ErrDuplicateBet", err)
	}
}

func TestPlaceBet_RejectedAfterAscent(t *testing.T) {
	led, _ := newTestLedger(ascendingRound("rx", 10.0))
	led.Deposit("alice", 100)

	_, _, err := led.PlaceBet("alice", 50, "rx")
	if !errors.Is(err, ErrState) {
		t.Fatalf("got %v, want ErrState", err)
	}
	if bal := led.Balance("alice"); bal != 100 {
		t.Errorf("failed placement moved money: balance %d", bal)
	}
}

func TestPlaceBet_ConcurrentInsufficientFunds(t *testing.T) {
	// Two concurrent placements where only one can be afforded: exactly
	// one succeeds.
	led, _ := newTestLedger(pendingRound("ra"), pendingRound("rb"))
	led.Deposit("alice", 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, rid := range []string{"ra", "rb"} {
		wg.Add(1)
		go func(i int, rid string) {
			defer wg.Done()
			_, _, errs[i] = led.PlaceBet("alice", 60, rid)
		}(i, rid)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d insufficient-funds, want 1 and 1", ok, insufficient)
	}
	if bal := led.Balance("alice"); bal != 40 {
		t.Errorf("balance = %d, want 40", bal)
	}
}

func TestCashOut_PaysAtQuotedMultiplier(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)

	betID, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if err := r.BeginAscent(time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("begin ascent: %v", err)
	}

	payout, multiplier, balance, err := led.CashOut(betID, "alice")
	if err != nil {
		t.Fatalf("cash out: %v", err)
	}
	if multiplier < 2.0 || multiplier >= 10.0 {
		t.Fatalf("multiplier %v outside expected window", multiplier)
	}
	// balance_after = balance_before - amount + amount*multiplier.
	if want := int64(100) - 50 + payout; balance != want {
		t.Errorf("balance = %d, want %d", balance, want)
	}

	bet, err := led.Bet(betID, "alice")
	if err != nil {
		t.Fatalf("lookup bet: %v", err)
	}
	if bet.Status != model.BetWon || bet.CashOutMultiplier != multiplier || bet.Payout != payout {
		t.Errorf("bet = %+v", bet)
	}
	if bet.CashedOutAt.IsZero() {
		t.Error("cashed_out_at not set")
	}
}

func TestCashOut_Errors(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)
	betID, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if _, _, _, err := led.CashOut("missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown bet: got %v, want ErrNotFound", err)
	}
	// Another user's bet is indistinguishable from a missing one.
	if _, _, _, err := led.CashOut(betID, "mallory"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign bet: got %v, want ErrNotFound", err)
	}
	// Round still pending.
	if _, _, _, err := led.CashOut(betID, "alice"); !errors.Is(err, ErrState) {
		t.Errorf("pending round: got %v, want ErrState", err)
	}
}

func TestCashOut_AfterCrashFailsDistinctly(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)
	betID, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	now := time.Now()
	if err := r.BeginAscent(now.Add(-time.Second)); err != nil {
		t.Fatalf("begin ascent: %v", err)
	}
	if err := r.Crash(now); err != nil {
		t.Fatalf("crash: %v", err)
	}

	_, _, _, err = led.CashOut(betID, "alice")
	if !errors.Is(err, ErrRoundCrashed) {
		t.Fatalf("got %v, want ErrRoundCrashed", err)
	}
	// The crashed case is still a state error for generic handling.
	if !errors.Is(err, ErrState) {
		t.Error("ErrRoundCrashed should match ErrState")
	}
	if bal := led.Balance("alice"); bal != 50 {
		t.Errorf("failed cash-out moved money: balance %d", bal)
	}
}

func TestCashOut_DoubleRace(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)
	betID, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if err := r.BeginAscent(time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("begin ascent: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	payouts := make([]int64, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payouts[i], _, _, errs[i] = led.CashOut(betID, "alice")
		}(i)
	}
	wg.Wait()

	var ok int
	var paid int64
	for i := range errs {
		if errs[i] == nil {
			ok++
			paid = payouts[i]
		} else if !errors.Is(errs[i], ErrState) {
			t.Fatalf("loser got %v, want ErrState", errs[i])
		}
	}
	if ok != 1 {
		t.Fatalf("%d cash-outs succeeded, want exactly 1", ok)
	}
	if bal := led.Balance("alice"); bal != 50+paid {
		t.Errorf("balance = %d, want %d", bal, 50+paid)
	}
}

func TestCancelBet(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)
	betID, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	balance, err := led.CancelBet(betID, "alice")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance after cancel = %d, want 100", balance)
	}
	bet, _ := led.Bet(betID, "alice")
	if bet.Status != model.BetCancelled {
		t.Errorf("bet status = %s, want cancelled", bet.Status)
	}

	// Terminal: a second cancel fails.
	if _, err := led.CancelBet(betID, "alice"); !errors.Is(err, ErrState) {
		t.Errorf("double cancel: got %v, want ErrState", err)
	}
}

func TestCancelBet_IllegalOnceAscending(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)
	betID, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if err := r.BeginAscent(time.Now()); err != nil {
		t.Fatalf("begin ascent: %v", err)
	}
	if _, err := led.CancelBet(betID, "alice"); !errors.Is(err, ErrState) {
		t.Errorf("cancel while ascending: got %v, want ErrState", err)
	}
	if bal := led.Balance("alice"); bal != 50 {
		t.Errorf("failed cancel moved money: balance %d", bal)
	}
}

func TestSettleRound_MarksLostWithoutBalanceChange(t *testing.T) {
	r := pendingRound("rx")
	led, _ := newTestLedger(r)
	led.Deposit("alice", 100)
	led.Deposit("bob", 200)

	aliceBet, _, err := led.PlaceBet("alice", 50, "rx")
	if err != nil {
		t.Fatalf("alice bet: %v", err)
	}
	bobBet, _, err := led.PlaceBet("bob", 80, "rx")
	if err != nil {
		t.Fatalf("bob bet: %v", err)
	}

	now := time.Now()
	if err := r.BeginAscent(now.Add(-time.Second)); err != nil {
		t.Fatalf("begin ascent: %v", err)
	}

	// Bob escapes before the crash.
	bobPayout, _, _, err := led.CashOut(bobBet, "bob")
	if err != nil {
		t.Fatalf("bob cash out: %v", err)
	}

	if err := r.Crash(now); err != nil {
		t.Fatalf("crash: %v", err)
	}

	if lost := led.SettleRound("rx"); lost != 1 {
		t.Fatalf("settle marked %d bets lost, want 1", lost)
	}

	bet, _ := led.Bet(aliceBet, "alice")
	if bet.Status != model.BetLost {
		t.Errorf("alice bet status = %s, want lost", bet.Status)
	}
	// Stake was consumed at placement; settlement moves nothing.
	if bal := led.Balance("alice"); bal != 50 {
		t.Errorf("alice balance = %d, want 50", bal)
	}
	if bal := led.Balance("bob"); bal != 200-80+bobPayout {
		t.Errorf("bob balance = %d, want %d", bal, 200-80+bobPayout)
	}

	// Settling again finds nothing.
	if lost := led.SettleRound("rx"); lost != 0 {
		t.Errorf("second settle marked %d bets", lost)
	}

	// A lost bet can never be cashed out.
	if _, _, _, err := led.CashOut(aliceBet, "alice"); !errors.Is(err, ErrState) {
		t.Errorf("cash out after loss: got %v, want ErrState", err)
	}
}

func TestDeposit(t *testing.T) {
	led, _ := newTestLedger()

	if _, err := led.Deposit("alice", 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero deposit: got %v, want ErrValidation", err)
	}
	bal, err := led.Deposit("alice", 250)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal != 250 {
		t.Errorf("balance = %d, want 250", bal)
	}
}

func TestEnsureAccount(t *testing.T) {
	led, _ := newTestLedger()

	if bal := led.EnsureAccount("alice", 1000); bal != 1000 {
		t.Errorf("first ensure = %d, want 1000", bal)
	}
	// Idempotent: existing accounts are not topped up.
	if bal := led.EnsureAccount("alice", 1000); bal != 1000 {
		t.Errorf("second ensure = %d, want 1000", bal)
	}
}
