package memory

import (
	"context"
	"sync"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu    sync.RWMutex
	rows  map[string][]domain.HolderRow // keyed by collection
	saves int
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		rows: make(map[string][]domain.HolderRow),
	}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save replaces the rows of collection.
func (s *CheckpointStore) Save(_ context.Context, collection string, rows []domain.HolderRow) error {
	if collection == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[collection] = append([]domain.HolderRow(nil), rows...)
	s.saves++
	return nil
}

// LoadIncomplete partitions the saved rows of collection. Returns ErrNotFound if never saved.
func (s *CheckpointStore) LoadIncomplete(_ context.Context, collection string) (*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.rows[collection]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return domain.NewRunState(rows), nil
}

// Rows returns a copy of the saved rows of collection.
func (s *CheckpointStore) Rows(collection string) []domain.HolderRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HolderRow(nil), s.rows[collection]...)
}

// Saves returns how many times Save succeeded.
func (s *CheckpointStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
