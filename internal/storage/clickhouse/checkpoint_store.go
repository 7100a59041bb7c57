package clickhouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/observability"
	"solana-nft-holders/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore on append-only ClickHouse tables.
// Every Save writes a new snapshot; the latest snapshot with a run row is the checkpoint.
type CheckpointStore struct {
	conn *Conn

	mu     sync.Mutex
	lastID uint64
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(conn *Conn) *CheckpointStore {
	return &CheckpointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// nextSnapshotID returns a strictly increasing id based on wall clock nanoseconds.
func (s *CheckpointStore) nextSnapshotID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uint64(time.Now().UnixNano())
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Save appends rows as a new snapshot. The run row is written last, so a
// failed batch never becomes visible and the prior snapshot stays current.
func (s *CheckpointStore) Save(ctx context.Context, collection string, rows []domain.HolderRow) (err error) {
	if collection == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "save_snapshot", time.Since(start).Seconds(), err)
	}()

	seen := make(map[string]struct{}, len(rows))
	failed := 0
	for _, row := range rows {
		if _, dup := seen[row.Mint]; dup {
			return fmt.Errorf("%w: duplicate mint %s", storage.ErrInvalidInput, row.Mint)
		}
		seen[row.Mint] = struct{}{}
		if !row.Succeeded() {
			failed++
		}
	}

	id := s.nextSnapshotID()

	if len(rows) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, `
			INSERT INTO holder_snapshots (
				collection, snapshot_id, position, mint, owner, token_account
			)
		`)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}

		for i, row := range rows {
			err = batch.Append(collection, id, uint32(i), row.Mint, row.Owner.String(), row.TokenAccount.String())
			if err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}

		if err := batch.Send(); err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO holder_snapshot_runs (collection, snapshot_id, row_count, failed_count)
		VALUES (?, ?, ?, ?)
	`, collection, id, uint32(len(rows)), uint32(failed))
	if err != nil {
		return fmt.Errorf("insert snapshot run: %w", err)
	}

	return nil
}

// LoadIncomplete reads the latest snapshot of collection in position order.
func (s *CheckpointStore) LoadIncomplete(ctx context.Context, collection string) (state *domain.RunState, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "load_snapshot", time.Since(start).Seconds(), err)
	}()

	id, rowCount, found, err := s.latestRun(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("snapshot %s: %w", collection, storage.ErrNotFound)
	}

	query := `
		SELECT mint, owner, token_account
		FROM holder_snapshots
		WHERE collection = ? AND snapshot_id = ?
		ORDER BY position ASC
	`

	chRows, err := s.conn.Query(ctx, query, collection, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer chRows.Close()

	var rows []domain.HolderRow
	for chRows.Next() {
		var mint, owner, tokenAccount string
		if err := chRows.Scan(&mint, &owner, &tokenAccount); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		rows = append(rows, domain.HolderRow{
			Mint:         mint,
			Owner:        domain.ParseResolution(owner),
			TokenAccount: domain.ParseResolution(tokenAccount),
		})
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	if uint32(len(rows)) != rowCount {
		return nil, fmt.Errorf("%w: snapshot %d of %s has %d rows, run says %d",
			storage.ErrCorrupt, id, collection, len(rows), rowCount)
	}

	return domain.NewRunState(rows), nil
}

func (s *CheckpointStore) latestRun(ctx context.Context, collection string) (id uint64, rowCount uint32, found bool, err error) {
	query := `
		SELECT snapshot_id, row_count
		FROM holder_snapshot_runs
		WHERE collection = ?
		ORDER BY snapshot_id DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, collection)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query snapshot runs: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, 0, false, fmt.Errorf("iterate snapshot runs: %w", err)
		}
		return 0, 0, false, nil
	}

	if err := rows.Scan(&id, &rowCount); err != nil {
		return 0, 0, false, fmt.Errorf("scan snapshot run: %w", err)
	}
	return id, rowCount, true, nil
}
