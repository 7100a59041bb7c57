package memory

import (
	"context"
	"errors"
	"testing"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

func TestTokenMetadataStore_UpsertAndGetByMint(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	items := []domain.TokenMetadata{
		{
			Mint:     "mint1",
			Name:     "Ape #1",
			Symbol:   "APE",
			Creators: []domain.Creator{{Address: "creator1", Verified: true, Share: 100}},
		},
	}

	if err := store.Upsert(ctx, "creator1", items); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	if result.Name != "Ape #1" {
		t.Errorf("Name mismatch: got %s, want Ape #1", result.Name)
	}

	if len(result.Creators) != 1 || result.Creators[0].Address != "creator1" {
		t.Errorf("Creators mismatch: got %+v", result.Creators)
	}
}

func TestTokenMetadataStore_UpsertReplaces(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, "c1", []domain.TokenMetadata{{Mint: "mint1", Name: "old"}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, "c1", []domain.TokenMetadata{{Mint: "mint1", Name: "new"}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	if result.Name != "new" {
		t.Errorf("Name mismatch: got %s, want new", result.Name)
	}
}

func TestTokenMetadataStore_ListByCollection(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	store.Upsert(ctx, "c1", []domain.TokenMetadata{{Mint: "mintB"}, {Mint: "mintA"}})
	store.Upsert(ctx, "c2", []domain.TokenMetadata{{Mint: "mintC"}})

	items, err := store.ListByCollection(ctx, "c1")
	if err != nil {
		t.Fatalf("ListByCollection failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if items[0].Mint != "mintA" || items[1].Mint != "mintB" {
		t.Errorf("expected sorted mints, got %s, %s", items[0].Mint, items[1].Mint)
	}

	empty, err := store.ListByCollection(ctx, "unknown")
	if err != nil {
		t.Fatalf("ListByCollection failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no items, got %d", len(empty))
	}
}

func TestTokenMetadataStore_NotFound(t *testing.T) {
	store := NewTokenMetadataStore()

	_, err := store.GetByMint(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenMetadataStore_InvalidInput(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, "", nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty collection, got %v", err)
	}

	if err := store.Upsert(ctx, "c1", []domain.TokenMetadata{{Name: "no mint"}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty mint, got %v", err)
	}
}
