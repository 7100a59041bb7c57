package memory

import (
	"context"
	"sort"
	"sync"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type TokenMetadataStore struct {
	mu           sync.RWMutex
	byMint       map[string]*domain.TokenMetadata // keyed by mint (unique)
	byCollection map[string]map[string]bool       // collection -> set of mints
}

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		byMint:       make(map[string]*domain.TokenMetadata),
		byCollection: make(map[string]map[string]bool),
	}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Upsert inserts or replaces metadata keyed by mint.
func (s *TokenMetadataStore) Upsert(_ context.Context, collection string, items []domain.TokenMetadata) error {
	if collection == "" {
		return storage.ErrInvalidInput
	}
	for _, m := range items {
		if m.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mints, ok := s.byCollection[collection]
	if !ok {
		mints = make(map[string]bool)
		s.byCollection[collection] = mints
	}
	for _, m := range items {
		metaCopy := m
		metaCopy.Creators = append([]domain.Creator(nil), m.Creators...)
		s.byMint[m.Mint] = &metaCopy
		mints[m.Mint] = true
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byMint[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	metaCopy := *m
	return &metaCopy, nil
}

// ListByCollection returns all metadata stored for collection ordered by mint.
func (s *TokenMetadataStore) ListByCollection(_ context.Context, collection string) ([]domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mints := make([]string, 0, len(s.byCollection[collection]))
	for mint := range s.byCollection[collection] {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	items := make([]domain.TokenMetadata, len(mints))
	for i, mint := range mints {
		items[i] = *s.byMint[mint]
	}
	return items, nil
}
