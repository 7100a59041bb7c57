// Package file stores checkpoints as CSV files, one per collection.
package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio/v2"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/storage"
)

// CheckpointStore writes <dir>/<collection>.csv.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore creates a store rooted at dir. An empty dir means the working directory.
func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Path returns the checkpoint file for collection.
func (s *CheckpointStore) Path(collection string) string {
	return filepath.Join(s.dir, collection+".csv")
}

func validCollection(collection string) bool {
	return collection != "" && !strings.ContainsAny(collection, `/\`) && collection != "." && collection != ".."
}

// Save writes the header and rows to a temporary file and renames it over the checkpoint.
func (s *CheckpointStore) Save(_ context.Context, collection string, rows []domain.HolderRow) error {
	if !validCollection(collection) {
		return storage.ErrInvalidInput
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(storage.CheckpointHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write([]string{row.Mint, row.Owner.String(), row.TokenAccount.String()}); err != nil {
			return fmt.Errorf("write row %s: %w", row.Mint, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	if err := renameio.WriteFile(s.Path(collection), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.Path(collection), err)
	}
	return nil
}

// LoadIncomplete reads the checkpoint written by Save.
func (s *CheckpointStore) LoadIncomplete(_ context.Context, collection string) (*domain.RunState, error) {
	if !validCollection(collection) {
		return nil, storage.ErrInvalidInput
	}

	f, err := os.Open(s.Path(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checkpoint %s: %w", s.Path(collection), storage.ErrNotFound)
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", s.Path(collection), err)
	}
	return domain.NewRunState(rows), nil
}

func readRows(r io.Reader) ([]domain.HolderRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(storage.CheckpointHeader)

	var rows []domain.HolderRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
		}
		if line == 1 && slices.Equal(rec, storage.CheckpointHeader) {
			continue
		}
		if rec[0] == "" {
			return nil, fmt.Errorf("%w: line %d has no mint", storage.ErrCorrupt, line)
		}
		rows = append(rows, domain.HolderRow{
			Mint:         rec[0],
			Owner:        domain.ParseResolution(rec[1]),
			TokenAccount: domain.ParseResolution(rec[2]),
		})
	}
}
