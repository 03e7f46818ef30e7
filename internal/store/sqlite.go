package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"skycrash/internal/model"
)

// ErrRoundNotFound is returned when a round id has no settled record.
var ErrRoundNotFound = errors.New("round not found")

// SQLiteStore persists history to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the game writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id              TEXT PRIMARY KEY,
			crash_point     REAL NOT NULL,
			seed_commitment TEXT NOT NULL,
			seed_reveal     TEXT,
			phase           TEXT NOT NULL,
			started_at      INTEGER NOT NULL,
			ascended_at     INTEGER,
			crashed_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_started ON rounds(started_at)`,

		`CREATE TABLE IF NOT EXISTS bets (
			id                  TEXT PRIMARY KEY,
			round_id            TEXT NOT NULL,
			user_id             TEXT NOT NULL,
			amount              INTEGER NOT NULL,
			status              TEXT NOT NULL,
			cash_out_multiplier REAL,
			payout              INTEGER,
			placed_at           INTEGER NOT NULL,
			cashed_out_at       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_round ON bets(round_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bets_user ON bets(user_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			status     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_created ON transactions(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func (s *SQLiteStore) RecordRound(rec *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO rounds
		(id, crash_point, seed_commitment, seed_reveal, phase, started_at, ascended_at, crashed_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.CrashPoint, rec.SeedCommitment, rec.SeedReveal, string(rec.Phase),
		unixOrZero(rec.StartedAt), unixOrZero(rec.AscendedAt), unixOrZero(rec.CrashedAt),
	)
	return err
}

func (s *SQLiteStore) RecordBet(bet *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO bets
		(id, round_id, user_id, amount, status, cash_out_multiplier, payout, placed_at, cashed_out_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		bet.ID, bet.RoundID, bet.UserID, bet.Amount, string(bet.Status),
		bet.CashOutMultiplier, bet.Payout,
		unixOrZero(bet.PlacedAt), unixOrZero(bet.CashedOutAt),
	)
	return err
}

func (s *SQLiteStore) RecordTransaction(tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO transactions
		(id, user_id, type, amount, status, created_at)
		VALUES (?,?,?,?,?,?)`,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.Status, unixOrZero(tx.CreatedAt),
	)
	return err
}

func (s *SQLiteStore) Round(id string) (*model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT id, crash_point, seed_commitment, seed_reveal, phase,
		started_at, ascended_at, crashed_at FROM rounds WHERE id = ?`, id)

	var rec model.Round
	var phase string
	var started, ascended, crashed int64
	err := row.Scan(&rec.ID, &rec.CrashPoint, &rec.SeedCommitment, &rec.SeedReveal,
		&phase, &started, &ascended, &crashed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query round: %w", err)
	}
	rec.Phase = model.Phase(phase)
	rec.StartedAt = time.Unix(started, 0)
	if ascended > 0 {
		rec.AscendedAt = time.Unix(ascended, 0)
	}
	if crashed > 0 {
		rec.CrashedAt = time.Unix(crashed, 0)
	}
	return &rec, nil
}

func (s *SQLiteStore) TransactionTotals() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT user_id, type, SUM(amount) FROM transactions
		GROUP BY user_id, type`)
	if err != nil {
		return nil, fmt.Errorf("query transaction totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var userID, txType string
		var sum int64
		if err := rows.Scan(&userID, &txType, &sum); err != nil {
			return nil, fmt.Errorf("scan transaction total: %w", err)
		}
		totals[userID] += model.TransactionType(txType).SignedAmount(sum)
	}
	return totals, rows.Err()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
