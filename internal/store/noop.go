package store

import "skycrash/internal/model"

// NoopStore is a no-op implementation used when SQLite is not configured.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) RecordRound(_ *model.Round) error             { return nil }
func (n *NoopStore) RecordBet(_ *model.Bet) error                 { return nil }
func (n *NoopStore) RecordTransaction(_ *model.Transaction) error { return nil }
func (n *NoopStore) Round(_ string) (*model.Round, error)         { return nil, ErrRoundNotFound }
func (n *NoopStore) TransactionTotals() (map[string]int64, error) { return nil, nil }
func (n *NoopStore) Close() error                                 { return nil }
