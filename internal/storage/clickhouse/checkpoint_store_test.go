package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

func TestCheckpointStore_SaveAndLoadIncomplete(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCheckpointStore(conn)

	rows := []domain.HolderRow{
		{Mint: "M1", Owner: domain.Resolved("O1"), TokenAccount: domain.Resolved("T1")},
		{Mint: "M2", Owner: domain.Failed(), TokenAccount: domain.Resolved("T2")},
		{Mint: "M3", Owner: domain.Failed(), TokenAccount: domain.Failed()},
	}
	require.NoError(t, store.Save(ctx, "creator-1", rows))

	state, err := store.LoadIncomplete(ctx, "creator-1")
	require.NoError(t, err)

	require.Len(t, state.Succeeded, 1)
	assert.Equal(t, rows[0], state.Succeeded[0])
	assert.Equal(t, []string{"M2", "M3"}, state.Failed)
}

func TestCheckpointStore_LatestSnapshotWins(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCheckpointStore(conn)

	first := []domain.HolderRow{
		{Mint: "M1", Owner: domain.Failed(), TokenAccount: domain.Failed()},
	}
	second := []domain.HolderRow{
		{Mint: "M1", Owner: domain.Resolved("O1"), TokenAccount: domain.Resolved("T1")},
	}
	require.NoError(t, store.Save(ctx, "creator-1", first))
	require.NoError(t, store.Save(ctx, "creator-1", second))

	state, err := store.LoadIncomplete(ctx, "creator-1")
	require.NoError(t, err)
	assert.Len(t, state.Succeeded, 1)
	assert.Empty(t, state.Failed)
}

func TestCheckpointStore_EmptySnapshot(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCheckpointStore(conn)

	require.NoError(t, store.Save(ctx, "creator-1", []domain.HolderRow{
		{Mint: "M1", Owner: domain.Failed(), TokenAccount: domain.Failed()},
	}))
	require.NoError(t, store.Save(ctx, "creator-1", nil))

	state, err := store.LoadIncomplete(ctx, "creator-1")
	require.NoError(t, err)
	assert.Empty(t, state.Succeeded)
	assert.Empty(t, state.Failed)
}

func TestCheckpointStore_DuplicateMint(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCheckpointStore(conn)

	rows := []domain.HolderRow{{Mint: "M1"}, {Mint: "M1"}}
	err := store.Save(context.Background(), "creator-1", rows)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestCheckpointStore_NotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCheckpointStore(conn)

	_, err := store.LoadIncomplete(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCheckpointStore_SnapshotIDsIncrease(t *testing.T) {
	store := NewCheckpointStore(nil)

	prev := store.nextSnapshotID()
	for i := 0; i < 1000; i++ {
		id := store.nextSnapshotID()
		require.Greater(t, id, prev)
		prev = id
	}
}
