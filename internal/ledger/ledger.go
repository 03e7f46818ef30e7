// Package ledger owns account balances and bet records. Every operation is
// all-or-nothing: it locks the single account it touches, never the whole
// registry, so unrelated users do not serialize on each other.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"skycrash/internal/model"
	"skycrash/internal/round"
)

// Rounds resolves a round id to the live state machine. Implemented by the
// coordinator; returns nil for rounds that are not current.
type Rounds interface {
	Round(id string) *round.Round
}

// Publisher pushes bet events to subscribers.
type Publisher interface {
	Publish(evt model.Event)
}

// Limits bounds a single stake. Zero means unbounded on that side.
type Limits struct {
	MinBet int64
	MaxBet int64
}

// PlaceBet atomically debits the stake and opens an active bet.
func (l *Ledger) PlaceBet(userID string, amount int64, roundID string) (betID string, newBalance int64, err error) {
	if amount <= 0 {
		return "", 0, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if l.limits.MinBet > 0 && amount < l.limits.MinBet {
		return "", 0, fmt.Errorf("%w: amount below minimum bet %d", ErrValidation, l.limits.MinBet)
	}
	if l.limits.MaxBet > 0 && amount > l.limits.MaxBet {
		return "", 0, fmt.Errorf("%w: amount above maximum bet %d", ErrValidation, l.limits.MaxBet)
	}

	r := l.rounds.Round(roundID)
	if r == nil {
		return "", 0, fmt.Errorf("%w: round %s is not current", ErrState, roundID)
	}

	acct := l.account(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	for _, b := range acct.bets {
		if b.RoundID == roundID && b.Status == model.BetActive {
			return "", 0, ErrDuplicateBet
		}
	}
	if acct.balance < amount {
		return "", 0, ErrInsufficientFunds
	}

	// Phase check under the account lock: the round must still be taking
	// bets at the instant the debit lands.
	if err := r.AcceptBet(); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrState, err)
	}

	now := time.Now()
	bet := &model.Bet{
		ID:       uuid.NewString(),
		RoundID:  roundID,
		UserID:   userID,
		Amount:   amount,
		Status:   model.BetActive,
		PlacedAt: now,
	}
	acct.balance -= amount
	acct.bets[bet.ID] = bet
	l.registerBet(bet.ID, acct)

	l.recordTx(userID, model.TxBet, amount, now)
	l.publish(model.Event{
		Type: model.EventBetPlaced, RoundID: roundID,
		UserID: userID, BetID: bet.ID, Amount: amount,
	})

	return bet.ID, acct.balance, nil
}

// CashOut settles an active bet as won at the round's authoritative
// multiplier for the instant the request is accepted. The multiplier comes
// from the round's own clock and phase, never from the caller.
func (l *Ledger) CashOut(betID, userID string) (payout int64, multiplier float64, newBalance int64, err error) {
	acct, bet := l.lookupBet(betID, userID)
	if acct == nil {
		return 0, 0, 0, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	if bet.Status != model.BetActive {
		return 0, 0, 0, fmt.Errorf("%w: bet is %s", ErrState, bet.Status)
	}

	r := l.rounds.Round(bet.RoundID)
	if r == nil {
		return 0, 0, 0, ErrRoundCrashed
	}
	multiplier, qerr := r.CashoutQuote(time.Now())
	if qerr != nil {
		if errors.Is(qerr, round.ErrCrashed) {
			return 0, 0, 0, ErrRoundCrashed
		}
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrState, qerr)
	}

	now := time.Now()
	payout = int64(math.Round(float64(bet.Amount) * multiplier))
	acct.balance += payout
	bet.Status = model.BetWon
	bet.CashOutMultiplier = multiplier
	bet.Payout = payout
	bet.CashedOutAt = now

	l.recordBet(bet)
	l.recordTx(userID, model.TxWin, payout, now)
	l.publish(model.Event{
		Type: model.EventBetCashedOut, RoundID: bet.RoundID,
		UserID: userID, BetID: bet.ID, Amount: bet.Amount,
		Value: multiplier, Payout: payout,
	})

	return payout, multiplier, acct.balance, nil
}

// CancelBet withdraws an active bet and refunds the stake. Only legal while
// the owning round is still in its betting window.
func (l *Ledger) CancelBet(betID, userID string) (newBalance int64, err error) {
	acct, bet := l.lookupBet(betID, userID)
	if acct == nil {
		return 0, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	if bet.Status != model.BetActive {
		return 0, fmt.Errorf("%w: bet is %s", ErrState, bet.Status)
	}

	r := l.rounds.Round(bet.RoundID)
	if r == nil {
		return 0, fmt.Errorf("%w: round %s is not current", ErrState, bet.RoundID)
	}
	if cerr := r.AcceptCancel(); cerr != nil {
		return 0, fmt.Errorf("%w: %v", ErrState, cerr)
	}

	now := time.Now()
	acct.balance += bet.Amount
	bet.Status = model.BetCancelled

	l.recordBet(bet)
	l.recordTx(userID, model.TxRefund, bet.Amount, now)

	return acct.balance, nil
}

// SettleRound marks every still-active bet on the round as lost. Stakes
// were debited at placement, so no balance moves here. Invoked once by the
// coordinator after the crash barrier.
func (l *Ledger) SettleRound(roundID string) (lost int) {
	for _, acct := range l.allAccounts() {
		acct.mu.Lock()
		for _, bet := range acct.bets {
			if bet.RoundID == roundID && bet.Status == model.BetActive {
				bet.Status = model.BetLost
				l.recordBet(bet)
				lost++
			}
		}
		acct.mu.Unlock()
	}
	return lost
}

// Deposit credits externally-sourced funds.
func (l *Ledger) Deposit(userID string, amount int64) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	acct := l.account(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	acct.balance += amount
	acct.seeded = true
	l.recordTx(userID, model.TxDeposit, amount, time.Now())
	return acct.balance, nil
}

// Balance returns the user's current balance, zero for unknown users.
func (l *Ledger) Balance(userID string) int64 {
	l.mu.RLock()
	acct, ok := l.accounts[userID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance
}

// Balances returns a point-in-time copy of all balances.
func (l *Ledger) Balances() map[string]int64 {
	out := make(map[string]int64)
	for id, acct := range l.allAccountsByID() {
		acct.mu.Lock()
		out[id] = acct.balance
		acct.mu.Unlock()
	}
	return out
}

// Bet returns a copy of the bet record visible to its owner.
func (l *Ledger) Bet(betID, userID string) (model.Bet, error) {
	acct, bet := l.lookupBet(betID, userID)
	if acct == nil {
		return model.Bet{}, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return *bet, nil
}

func (l *Ledger) recordTx(userID string, typ model.TransactionType, amount int64, now time.Time) {
	tx := &model.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Amount:    amount,
		Status:    "completed",
		CreatedAt: now,
	}
	if err := l.store.RecordTransaction(tx); err != nil {
		log.Printf("[ERROR] record %s transaction for %s: %v", typ, userID, err)
	}
}

func (l *Ledger) recordBet(bet *model.Bet) {
	rec := *bet
	if err := l.store.RecordBet(&rec); err != nil {
		log.Printf("[ERROR] record bet %s: %v", bet.ID, err)
	}
}

func (l *Ledger) publish(evt model.Event) {
	if l.pub != nil {
		l.pub.Publish(evt)
	}
}
