package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"solana-nft-holders/internal/collection"
	"solana-nft-holders/internal/observability"
	"solana-nft-holders/internal/resolver"
	"solana-nft-holders/internal/retry"
	"solana-nft-holders/internal/snapshot"
	"solana-nft-holders/internal/solana"
	"solana-nft-holders/internal/storage"
	chstore "solana-nft-holders/internal/storage/clickhouse"
	"solana-nft-holders/internal/storage/file"
	"solana-nft-holders/internal/storage/migrations"
	pgstore "solana-nft-holders/internal/storage/postgres"
)

// DefaultRPC is the endpoint used when --rpc is not given.
const DefaultRPC = "https://ssc-dao.genesysgo.net/"

// Store backends selectable with --store.
const (
	storeFile       = "file"
	storePostgres   = "postgres"
	storeClickhouse = "clickhouse"
)

// Environment fallbacks for DSN flags.
const (
	envPostgresDSN   = "HOLDERS_POSTGRES_DSN"
	envClickhouseDSN = "HOLDERS_CLICKHOUSE_DSN"
)

type options struct {
	creator          string
	rpc              string
	failed           bool
	threads          int
	store            string
	outputDir        string
	postgresDSN      string
	clickhouseDSN    string
	budget           time.Duration
	rpcTimeout       time.Duration
	progressInterval time.Duration
	metricsAddr      string
	summaryJSON      string
}

// NewRootCommand creates the holders command.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "holders",
		Short: "Snapshot the current holders of a Solana NFT collection",
		Long: `Lists every mint whose first verified creator is the given address,
resolves the token account holding each mint and the wallet owning that account,
and writes Mint,Owner,Associated Token Account rows to a checkpoint.

Lookups that fail within their retry budget are written as FAILED.
Run again with --failed to retry only those mints.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.creator, "creator", "c", "", "First creator address of the collection")
	flags.StringVarP(&opts.rpc, "rpc", "r", DefaultRPC, "Solana RPC HTTP endpoint")
	flags.BoolVarP(&opts.failed, "failed", "f", false, "Resume: retry the FAILED rows of the existing checkpoint")
	flags.IntVarP(&opts.threads, "threads", "t", resolver.DefaultWorkers, "Concurrent lookups")
	flags.StringVar(&opts.store, "store", storeFile, "Checkpoint store: file, postgres or clickhouse")
	flags.StringVar(&opts.outputDir, "output-dir", ".", "Directory for <creator>.csv (file store)")
	flags.StringVar(&opts.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string (env "+envPostgresDSN+")")
	flags.StringVar(&opts.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string (env "+envClickhouseDSN+")")
	flags.DurationVar(&opts.budget, "budget", retry.DefaultBudget, "Retry budget per lookup")
	flags.DurationVar(&opts.rpcTimeout, "rpc-timeout", solana.DefaultTimeout, "HTTP timeout per RPC request")
	flags.DurationVar(&opts.progressInterval, "progress-interval", 10*time.Second, "Progress log interval (0 disables)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flags.StringVar(&opts.summaryJSON, "summary-json", "", "Write the holder summary as JSON to this file")
	_ = cmd.MarkFlagRequired("creator")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	logger := log.New(cmd.ErrOrStderr(), "[holders] ", log.LstdFlags|log.Lshortfile)

	if opts.threads <= 0 {
		return fmt.Errorf("--threads must be positive, got %d", opts.threads)
	}
	if _, err := solana.DecodePubkey(opts.creator); err != nil {
		return fmt.Errorf("invalid --creator: %w", err)
	}

	ctx, stop := withSignals(cmd.Context(), logger)
	defer stop()

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, logger)
		defer shutdown()
	}

	checkpoints, metadata, closeStores, err := openStores(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStores()

	rpc := solana.NewHTTPClient(opts.rpc, solana.WithTimeout(opts.rpcTimeout))
	lookup := collection.NewLookup(rpc)

	policy := retry.DefaultPolicy()
	policy.Budget = opts.budget

	runner := snapshot.New(snapshot.Options{
		Lister: lookup,
		Resolver: resolver.New(lookup, resolver.Config{
			Workers:          opts.threads,
			Policy:           policy,
			ProgressInterval: opts.progressInterval,
			Logger:           logger,
		}),
		Checkpoints: checkpoints,
		Metadata:    metadata,
		Logger:      logger,
	})

	logger.Printf("Using RPC %s with %d workers (%s store)", rpc.Endpoint(), opts.threads, opts.store)

	var res *snapshot.Result
	if opts.failed {
		res, err = runner.Resume(ctx, opts.creator)
	} else {
		res, err = runner.Run(ctx, opts.creator)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Println("Interrupted, no checkpoint written")
		}
		return err
	}

	if !res.Saved {
		return nil
	}

	summary := snapshot.Summarize(opts.creator, res.Rows, snapshot.DefaultTopHolders)
	summary.Print(cmd.OutOrStdout())

	if opts.summaryJSON != "" {
		if err := summary.WriteJSON(opts.summaryJSON); err != nil {
			logger.Printf("WARN: %v", err)
		} else {
			logger.Printf("Saved summary to %s", opts.summaryJSON)
		}
	}

	logger.Printf("Done in %s", res.Duration.Round(time.Millisecond))
	return nil
}

// openStores returns the checkpoint store selected by opts.store, plus a token
// metadata store when the backend has one.
func openStores(ctx context.Context, opts *options) (storage.CheckpointStore, storage.TokenMetadataStore, func(), error) {
	switch opts.store {
	case storeFile:
		return file.NewCheckpointStore(opts.outputDir), nil, func() {}, nil

	case storePostgres:
		dsn := firstNonEmpty(opts.postgresDSN, os.Getenv(envPostgresDSN))
		if dsn == "" {
			return nil, nil, nil, fmt.Errorf("--postgres-dsn or %s is required for the postgres store", envPostgresDSN)
		}
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pgstore.NewCheckpointStore(pool), pgstore.NewTokenMetadataStore(pool), pool.Close, nil

	case storeClickhouse:
		dsn := firstNonEmpty(opts.clickhouseDSN, os.Getenv(envClickhouseDSN))
		if dsn == "" {
			return nil, nil, nil, fmt.Errorf("--clickhouse-dsn or %s is required for the clickhouse store", envClickhouseDSN)
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		return chstore.NewCheckpointStore(conn), nil, func() { conn.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown --store %q (want %s, %s or %s)", opts.store, storeFile, storePostgres, storeClickhouse)
	}
}

// withSignals cancels ctx on SIGINT or SIGTERM. A second signal exits immediately.
func withSignals(parent context.Context, logger *log.Logger) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, shutting down...", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

// serveMetrics serves /metrics and /health on addr until the returned func is called.
func serveMetrics(addr string, logger *log.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Printf("Starting metrics server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
