// Package snapshot runs a full or resumed holder snapshot of one collection
// and persists the result through a checkpoint store.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/observability"
	"solana-nft-holders/internal/storage"
)

// Run modes, also used as metric labels.
const (
	ModeFresh  = "fresh"
	ModeResume = "resume"
)

// Lister lists the metadata of every mint in a collection.
type Lister interface {
	ListMetadata(ctx context.Context, creator string) ([]domain.TokenMetadata, error)
}

// Resolver resolves mints to holder rows in input order.
type Resolver interface {
	ResolveAll(ctx context.Context, mints []string) ([]domain.HolderRow, error)
}

// Options for creating a Runner.
type Options struct {
	Lister      Lister
	Resolver    Resolver
	Checkpoints storage.CheckpointStore

	// Metadata receives listed metadata on fresh runs. Optional.
	Metadata storage.TokenMetadataStore

	Logger *log.Logger // nil discards logs
}

// Runner snapshots collections.
type Runner struct {
	lister      Lister
	resolver    Resolver
	checkpoints storage.CheckpointStore
	metadata    storage.TokenMetadataStore
	logger      *log.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{
		lister:      opts.Lister,
		resolver:    opts.Resolver,
		checkpoints: opts.Checkpoints,
		metadata:    opts.Metadata,
		logger:      logger,
	}
}

// Result describes a finished run.
type Result struct {
	Mode     string
	Resolved int                // mints sent through the resolver
	Rows     []domain.HolderRow // rows saved, nil when nothing was saved
	Saved    bool
	Duration time.Duration
}

// Run lists the collection of creator, resolves every mint and saves the rows.
// An empty collection saves nothing. Cancellation saves nothing.
func (r *Runner) Run(ctx context.Context, creator string) (res *Result, err error) {
	start := time.Now()
	res = &Result{Mode: ModeFresh}
	defer r.record(res, start, &err)

	r.logger.Printf("Listing mints for creator %s", creator)
	items, err := r.lister.ListMetadata(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("list mints: %w", err)
	}
	observability.RecordMintsListed(len(items))

	if len(items) == 0 {
		r.logger.Printf("No mints found for creator %s", creator)
		return res, nil
	}
	r.logger.Printf("Found %d mints", len(items))

	if r.metadata != nil {
		if err := r.metadata.Upsert(ctx, creator, items); err != nil {
			r.logger.Printf("WARN: store token metadata: %v", err)
		}
	}

	mints := make([]string, len(items))
	for i, md := range items {
		mints[i] = md.Mint
	}

	rows, err := r.resolver.ResolveAll(ctx, mints)
	if err != nil {
		return nil, fmt.Errorf("resolve holders: %w", err)
	}
	res.Resolved = len(mints)

	if err := r.save(ctx, creator, rows); err != nil {
		return nil, err
	}
	res.Rows = rows
	res.Saved = true
	return res, nil
}

// Resume re-resolves the failed mints of the last checkpoint of creator and
// saves them together with the rows that already succeeded.
func (r *Runner) Resume(ctx context.Context, creator string) (res *Result, err error) {
	start := time.Now()
	res = &Result{Mode: ModeResume}
	defer r.record(res, start, &err)

	state, err := r.checkpoints.LoadIncomplete(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	r.logger.Printf("Checkpoint has %d succeeded and %d failed mints", len(state.Succeeded), len(state.Failed))

	fresh, err := r.resolver.ResolveAll(ctx, state.Failed)
	if err != nil {
		return nil, fmt.Errorf("resolve holders: %w", err)
	}
	res.Resolved = len(state.Failed)

	rows := state.Merge(fresh)
	if err := r.save(ctx, creator, rows); err != nil {
		return nil, err
	}
	res.Rows = rows
	res.Saved = true
	return res, nil
}

func (r *Runner) save(ctx context.Context, creator string, rows []domain.HolderRow) error {
	if err := r.checkpoints.Save(ctx, creator, rows); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	failed := 0
	for _, row := range rows {
		if !row.Succeeded() {
			failed++
		}
	}
	observability.RecordRowsSaved(len(rows)-failed, failed)
	r.logger.Printf("Saved %d rows (%d failed)", len(rows), failed)
	return nil
}

func (r *Runner) record(res *Result, start time.Time, errp *error) {
	res.Duration = time.Since(start)

	status := "success"
	switch {
	case *errp == nil:
	case errors.Is(*errp, context.Canceled):
		status = "cancelled"
	default:
		status = "error"
	}
	observability.RecordRun(res.Mode, status, res.Duration.Seconds())
	if *errp == nil {
		observability.MarkRunSucceeded(time.Now().Unix())
	}
}
