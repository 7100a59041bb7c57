package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

func TestTokenMetadataStore_UpsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	metadata := domain.TokenMetadata{
		UpdateAuthority:      "Authority1",
		Mint:                 "MetadataMint1",
		Name:                 "Ape #1",
		Symbol:               "APE",
		URI:                  "https://example.com/1.json",
		SellerFeeBasisPoints: 500,
		Creators: []domain.Creator{
			{Address: "Creator1", Verified: true, Share: 0},
			{Address: "Creator2", Verified: false, Share: 100},
		},
		PrimarySaleHappened: true,
		IsMutable:           true,
	}

	err := store.Upsert(ctx, "Creator1", []domain.TokenMetadata{metadata})
	require.NoError(t, err)

	retrieved, err := store.GetByMint(ctx, "MetadataMint1")
	require.NoError(t, err)

	assert.Equal(t, metadata, *retrieved)
}

func TestTokenMetadataStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	first := domain.TokenMetadata{Mint: "MintUpd", Name: "old", IsMutable: true}
	require.NoError(t, store.Upsert(ctx, "Creator1", []domain.TokenMetadata{first}))

	second := domain.TokenMetadata{Mint: "MintUpd", Name: "new", IsMutable: false}
	require.NoError(t, store.Upsert(ctx, "Creator1", []domain.TokenMetadata{second}))

	retrieved, err := store.GetByMint(ctx, "MintUpd")
	require.NoError(t, err)
	assert.Equal(t, "new", retrieved.Name)
	assert.False(t, retrieved.IsMutable)
	assert.Nil(t, retrieved.Creators)
}

func TestTokenMetadataStore_ListByCollection(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	require.NoError(t, store.Upsert(ctx, "Creator1", []domain.TokenMetadata{{Mint: "MintB"}, {Mint: "MintA"}}))
	require.NoError(t, store.Upsert(ctx, "Creator2", []domain.TokenMetadata{{Mint: "MintC"}}))

	items, err := store.ListByCollection(ctx, "Creator1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "MintA", items[0].Mint)
	assert.Equal(t, "MintB", items[1].Mint)

	items, err = store.ListByCollection(ctx, "Unknown")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTokenMetadataStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenMetadataStore(pool)

	_, err := store.GetByMint(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenMetadataStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenMetadataStore(pool)

	err := store.Upsert(context.Background(), "Creator1", []domain.TokenMetadata{{Name: "no mint"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
