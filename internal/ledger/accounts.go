package ledger

import (
	"sync"
	"time"

	"skycrash/internal/model"
	"skycrash/internal/store"
)

// account is one user's balance and bet records. Its mutex guards both:
// a bet has exactly one owner, so locking the owner makes every bet
// mutation atomic without a global lock.
type account struct {
	mu      sync.Mutex
	balance int64
	seeded  bool // starting balance granted or externally funded
	bets    map[string]*model.Bet
}

// Ledger is the wagering ledger. The registry mutex guards only map
// membership; all money and status mutation happens under per-account
// locks.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	betOwner map[string]*account

	rounds Rounds
	store  store.Store
	pub    Publisher
	limits Limits
}

// New creates a ledger. pub may be nil when no event fan-out is wanted.
func New(st store.Store, rounds Rounds, pub Publisher, limits Limits) *Ledger {
	return &Ledger{
		accounts: make(map[string]*account),
		betOwner: make(map[string]*account),
		rounds:   rounds,
		store:    st,
		pub:      pub,
		limits:   limits,
	}
}

// account returns the user's account, creating an empty one on first use.
func (l *Ledger) account(userID string) *account {
	l.mu.RLock()
	acct, ok := l.accounts[userID]
	l.mu.RUnlock()
	if ok {
		return acct
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok = l.accounts[userID]; ok {
		return acct
	}
	acct = &account{bets: make(map[string]*model.Bet)}
	l.accounts[userID] = acct
	return acct
}

// EnsureAccount provisions a never-before-seen user with the given
// starting balance, exactly once; funded accounts are untouched. Returns
// the current balance either way.
func (l *Ledger) EnsureAccount(userID string, startingBalance int64) int64 {
	acct := l.account(userID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if !acct.seeded {
		acct.seeded = true
		if startingBalance > 0 {
			acct.balance += startingBalance
			l.recordTx(userID, model.TxDeposit, startingBalance, time.Now())
		}
	}
	return acct.balance
}

// registerBet indexes a new bet's owner. Caller holds the account lock;
// the owner of a bet never changes.
func (l *Ledger) registerBet(betID string, acct *account) {
	l.mu.Lock()
	l.betOwner[betID] = acct
	l.mu.Unlock()
}

// lookupBet resolves a bet to its owning account, scoped to the caller's
// identity: another user's bet is indistinguishable from a missing one.
func (l *Ledger) lookupBet(betID, userID string) (*account, *model.Bet) {
	l.mu.RLock()
	acct, ok := l.betOwner[betID]
	l.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	acct.mu.Lock()
	bet, ok := acct.bets[betID]
	acct.mu.Unlock()
	if !ok || bet.UserID != userID {
		return nil, nil
	}
	return acct, bet
}

func (l *Ledger) allAccounts() []*account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*account, 0, len(l.accounts))
	for _, acct := range l.accounts {
		out = append(out, acct)
	}
	return out
}

func (l *Ledger) allAccountsByID() map[string]*account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*account, len(l.accounts))
	for id, acct := range l.accounts {
		out[id] = acct
	}
	return out
}
