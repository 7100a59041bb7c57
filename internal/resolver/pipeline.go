// Package resolver maps NFT mints to their holder token account and owner wallet
// using a bounded worker pool and per-call retry budgets.
//
// Resolution runs in two stages: every mint is first resolved to its holding token
// account, then every token account to its owner. Stage 2 starts only after stage 1
// has finished for all mints. Row i of the result always belongs to mint i of the input.
package resolver

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/observability"
	"solana-nft-holders/internal/retry"
)

// DefaultWorkers is the worker pool size when Config.Workers is not set.
const DefaultWorkers = 20

// Stage names used in progress reports and metrics.
const (
	StageHolder = "holder"
	StageOwner  = "owner"
)

// errUpstreamFailed short-circuits stage 2 for mints whose stage 1 failed.
var errUpstreamFailed = errors.New("holder token account unresolved")

// Lookup resolves one step of the chain. Implementations must be safe for concurrent use.
type Lookup interface {
	ResolveHolderAccount(ctx context.Context, mint string) (string, error)
	ResolveOwner(ctx context.Context, tokenAccount string) (string, error)
}

// Config configures a Pipeline.
type Config struct {
	Workers          int           // concurrent lookups, default DefaultWorkers
	Policy           retry.Policy  // applied to every lookup independently
	ProgressInterval time.Duration // 0 disables periodic progress logging
	Logger           *log.Logger   // nil discards logs
}

// Progress is a snapshot of pipeline progress.
type Progress struct {
	Total       int64
	HolderDone  int64
	OwnerDone   int64
	HolderFails int64
	OwnerFails  int64
}

// Pipeline resolves mints to holder rows.
type Pipeline struct {
	lookup   Lookup
	workers  int
	policy   retry.Policy
	interval time.Duration
	logger   *log.Logger

	total       atomic.Int64
	holderDone  atomic.Int64
	ownerDone   atomic.Int64
	holderFails atomic.Int64
	ownerFails  atomic.Int64
}

// New creates a Pipeline.
func New(lookup Lookup, cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		lookup:   lookup,
		workers:  workers,
		policy:   cfg.Policy,
		interval: cfg.ProgressInterval,
		logger:   logger,
	}
}

// Workers returns the pool size.
func (p *Pipeline) Workers() int {
	return p.workers
}

// Progress returns the completed count per stage. Safe to call while ResolveAll runs.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Total:       p.total.Load(),
		HolderDone:  p.holderDone.Load(),
		OwnerDone:   p.ownerDone.Load(),
		HolderFails: p.holderFails.Load(),
		OwnerFails:  p.ownerFails.Load(),
	}
}

// ResolveAll resolves every mint and returns one row per mint in input order.
// Lookups that exhaust their retry budget produce failed fields, never an error.
// An error is returned only when ctx is cancelled, in which case no rows are returned.
func (p *Pipeline) ResolveAll(ctx context.Context, mints []string) ([]domain.HolderRow, error) {
	p.total.Store(int64(len(mints)))
	p.holderDone.Store(0)
	p.ownerDone.Store(0)
	p.holderFails.Store(0)
	p.ownerFails.Store(0)

	keys := make([]domain.Resolution, len(mints))
	for i, mint := range mints {
		keys[i] = domain.Resolved(mint)
	}

	p.logger.Printf("Resolving holder token accounts for %d mints (%d workers)", len(mints), p.workers)
	accounts, err := p.runStage(ctx, StageHolder, keys, p.lookup.ResolveHolderAccount, &p.holderDone, &p.holderFails)
	if err != nil {
		return nil, err
	}

	p.logger.Printf("Resolving owners for %d token accounts", len(accounts))
	owners, err := p.runStage(ctx, StageOwner, accounts, p.lookup.ResolveOwner, &p.ownerDone, &p.ownerFails)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.HolderRow, len(mints))
	for i, mint := range mints {
		rows[i] = domain.HolderRow{
			Mint:         mint,
			Owner:        owners[i],
			TokenAccount: accounts[i],
		}
	}
	return rows, nil
}

// runStage maps inputs through fn with at most p.workers concurrent calls.
// out[i] is written only by the worker handling inputs[i].
func (p *Pipeline) runStage(
	ctx context.Context,
	stage string,
	inputs []domain.Resolution,
	fn func(context.Context, string) (string, error),
	done, fails *atomic.Int64,
) ([]domain.Resolution, error) {
	out := make([]domain.Resolution, len(inputs))

	stopReport := p.reportProgress(stage, int64(len(inputs)), done)
	defer stopReport()

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = p.resolveOne(ctx, stage, in, fn)
			if !out[i].OK() {
				fails.Add(1)
			}
			done.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveOne runs fn for a single input under the retry policy.
func (p *Pipeline) resolveOne(
	ctx context.Context,
	stage string,
	in domain.Resolution,
	fn func(context.Context, string) (string, error),
) domain.Resolution {
	defer observability.TrackInFlight(stage)()

	addr, err := retry.DoNotify(ctx, p.policy, func(ctx context.Context) (string, error) {
		if !in.OK() {
			return "", retry.Permanent(errUpstreamFailed)
		}
		return fn(ctx, in.Address())
	}, func(error, time.Duration) {
		observability.RecordRetry(stage)
	})

	switch {
	case err == nil:
		observability.RecordLookup(stage, "resolved")
		return domain.Resolved(addr)
	case errors.Is(err, retry.ErrPermanent):
		observability.RecordLookup(stage, "skipped")
	default:
		observability.RecordLookup(stage, "failed")
		if ctx.Err() == nil {
			p.logger.Printf("%s lookup for %s failed: %v", stage, in.Address(), err)
		}
	}
	return domain.Failed()
}

// reportProgress logs stage progress every p.interval until the returned func is called.
func (p *Pipeline) reportProgress(stage string, total int64, done *atomic.Int64) func() {
	if p.interval <= 0 || total == 0 {
		return func() {}
	}

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				p.logger.Printf("%s stage: %d/%d done", stage, done.Load(), total)
				return
			case <-ticker.C:
				p.logger.Printf("%s stage: %d/%d done", stage, done.Load(), total)
			}
		}
	}()

	return func() {
		close(stop)
		<-finished
	}
}
