package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
// A checkpoint is a holder_runs header plus its ordered holder_checkpoints rows.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Save replaces the checkpoint of collection in a single transaction.
// Duplicate mints in rows return ErrInvalidInput and leave the prior checkpoint intact.
func (s *CheckpointStore) Save(ctx context.Context, collection string, rows []domain.HolderRow) (err error) {
	if collection == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observe("save_checkpoint", start, err) }()

	failed := 0
	for _, row := range rows {
		if !row.Succeeded() {
			failed++
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO holder_runs (collection, row_count, failed_count, saved_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection) DO UPDATE SET
			row_count = EXCLUDED.row_count,
			failed_count = EXCLUDED.failed_count,
			saved_at = EXCLUDED.saved_at
	`, collection, len(rows), failed)
	if err != nil {
		return fmt.Errorf("upsert holder run: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM holder_checkpoints WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("delete previous checkpoint: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"holder_checkpoints"},
		[]string{"collection", "position", "mint", "owner", "token_account"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{collection, i, row.Mint, row.Owner.String(), row.TokenAccount.String()}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: duplicate mint in checkpoint", storage.ErrInvalidInput)
		}
		return fmt.Errorf("copy checkpoint rows: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadIncomplete reads the checkpoint of collection in position order.
func (s *CheckpointStore) LoadIncomplete(ctx context.Context, collection string) (state *domain.RunState, err error) {
	start := time.Now()
	defer func() { observe("load_checkpoint", start, err) }()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var rowCount int
	err = tx.QueryRow(ctx, `SELECT row_count FROM holder_runs WHERE collection = $1`, collection).Scan(&rowCount)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("checkpoint %s: %w", collection, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get holder run: %w", err)
	}

	pgRows, err := tx.Query(ctx, `
		SELECT mint, owner, token_account
		FROM holder_checkpoints
		WHERE collection = $1
		ORDER BY position ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint rows: %w", err)
	}

	rows, err := pgx.CollectRows(pgRows, scanHolderRow)
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint rows: %w", err)
	}

	if len(rows) != rowCount {
		return nil, fmt.Errorf("%w: %s has %d rows, header says %d", storage.ErrCorrupt, collection, len(rows), rowCount)
	}

	return domain.NewRunState(rows), nil
}

func scanHolderRow(row pgx.CollectableRow) (domain.HolderRow, error) {
	var mint, owner, tokenAccount string
	if err := row.Scan(&mint, &owner, &tokenAccount); err != nil {
		return domain.HolderRow{}, err
	}
	return domain.HolderRow{
		Mint:         mint,
		Owner:        domain.ParseResolution(owner),
		TokenAccount: domain.ParseResolution(tokenAccount),
	}, nil
}
