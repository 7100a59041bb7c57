package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// creatorRecord is the JSONB shape of one creator.
type creatorRecord struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

const upsertTokenMetadata = `
	INSERT INTO token_metadata (
		mint, collection, update_authority, name, symbol, uri,
		seller_fee_basis_points, creators, primary_sale_happened, is_mutable, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	ON CONFLICT (mint) DO UPDATE SET
		collection = EXCLUDED.collection,
		update_authority = EXCLUDED.update_authority,
		name = EXCLUDED.name,
		symbol = EXCLUDED.symbol,
		uri = EXCLUDED.uri,
		seller_fee_basis_points = EXCLUDED.seller_fee_basis_points,
		creators = EXCLUDED.creators,
		primary_sale_happened = EXCLUDED.primary_sale_happened,
		is_mutable = EXCLUDED.is_mutable,
		updated_at = EXCLUDED.updated_at
`

// Upsert inserts or replaces metadata keyed by mint in one batch.
func (s *TokenMetadataStore) Upsert(ctx context.Context, collection string, items []domain.TokenMetadata) (err error) {
	if collection == "" {
		return storage.ErrInvalidInput
	}
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("upsert_token_metadata", start, err) }()

	batch := &pgx.Batch{}
	for _, m := range items {
		if m.Mint == "" {
			return storage.ErrInvalidInput
		}
		creators, err := encodeCreators(m.Creators)
		if err != nil {
			return fmt.Errorf("encode creators of %s: %w", m.Mint, err)
		}
		batch.Queue(upsertTokenMetadata,
			m.Mint,
			collection,
			m.UpdateAuthority,
			m.Name,
			m.Symbol,
			m.URI,
			int32(m.SellerFeeBasisPoints),
			creators,
			m.PrimarySaleHappened,
			m.IsMutable,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert token metadata: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `
		SELECT mint, update_authority, name, symbol, uri,
			seller_fee_basis_points, creators, primary_sale_happened, is_mutable
		FROM token_metadata
		WHERE mint = $1
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get token metadata by mint: %w", err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanTokenMetadata)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata by mint: %w", err)
	}
	return &m, nil
}

// ListByCollection returns all metadata stored for collection ordered by mint.
func (s *TokenMetadataStore) ListByCollection(ctx context.Context, collection string) ([]domain.TokenMetadata, error) {
	query := `
		SELECT mint, update_authority, name, symbol, uri,
			seller_fee_basis_points, creators, primary_sale_happened, is_mutable
		FROM token_metadata
		WHERE collection = $1
		ORDER BY mint ASC
	`

	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("list token metadata by collection: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanTokenMetadata)
	if err != nil {
		return nil, fmt.Errorf("scan token metadata: %w", err)
	}
	return items, nil
}

func scanTokenMetadata(row pgx.CollectableRow) (domain.TokenMetadata, error) {
	var (
		m        domain.TokenMetadata
		fee      int32
		creators []byte
	)
	err := row.Scan(
		&m.Mint,
		&m.UpdateAuthority,
		&m.Name,
		&m.Symbol,
		&m.URI,
		&fee,
		&creators,
		&m.PrimarySaleHappened,
		&m.IsMutable,
	)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	m.SellerFeeBasisPoints = uint16(fee)

	m.Creators, err = decodeCreators(creators)
	if err != nil {
		return domain.TokenMetadata{}, fmt.Errorf("decode creators of %s: %w", m.Mint, err)
	}
	return m, nil
}

func encodeCreators(creators []domain.Creator) ([]byte, error) {
	records := make([]creatorRecord, len(creators))
	for i, c := range creators {
		records[i] = creatorRecord{Address: c.Address, Verified: c.Verified, Share: c.Share}
	}
	return json.Marshal(records)
}

func decodeCreators(data []byte) ([]domain.Creator, error) {
	var records []creatorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	creators := make([]domain.Creator, len(records))
	for i, r := range records {
		creators[i] = domain.Creator{Address: r.Address, Verified: r.Verified, Share: r.Share}
	}
	return creators, nil
}
