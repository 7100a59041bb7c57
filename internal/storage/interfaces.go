package storage

import (
	"context"

	"solana-nft-holders/internal/domain"
)

// CheckpointHeader is the fixed header record of a checkpoint.
var CheckpointHeader = []string{"Mint", "Owner", "Associated Token Account"}

// CheckpointStore persists the holder rows of one collection so a later run can
// resume the mints that failed.
type CheckpointStore interface {
	// Save replaces any prior checkpoint for collection with rows.
	// Either the whole checkpoint is written or the prior one is left intact.
	Save(ctx context.Context, collection string, rows []domain.HolderRow) error

	// LoadIncomplete reads the checkpoint for collection and partitions it into
	// succeeded rows and failed mints. Returns ErrNotFound if none exists.
	LoadIncomplete(ctx context.Context, collection string) (*domain.RunState, error)
}

// TokenMetadataStore provides access to collection token metadata.
type TokenMetadataStore interface {
	// Upsert inserts or replaces metadata keyed by mint.
	Upsert(ctx context.Context, collection string, items []domain.TokenMetadata) error

	// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)

	// ListByCollection returns all metadata stored for collection ordered by mint.
	ListByCollection(ctx context.Context, collection string) ([]domain.TokenMetadata, error)
}
