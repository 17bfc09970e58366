package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront-labs/shopmirror/internal/adapters/driven/backend/postgres"
	"github.com/storefront-labs/shopmirror/internal/adapters/driven/config/file"
	"github.com/storefront-labs/shopmirror/internal/adapters/driven/extractor"
	"github.com/storefront-labs/shopmirror/internal/adapters/driven/storage/memory"
	"github.com/storefront-labs/shopmirror/internal/adapters/driven/storage/sqlite"
	"github.com/storefront-labs/shopmirror/internal/adapters/driven/upstream/social"
	"github.com/storefront-labs/shopmirror/internal/adapters/driving/cli"
	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
	"github.com/storefront-labs/shopmirror/internal/core/services"
	"github.com/storefront-labs/shopmirror/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	// Local replica. A failed open degrades to in-memory stores: the mirror
	// still works, but offline state does not survive the process.
	var (
		records     driven.RecordStore
		outbox      driven.OutboxStore
		snapshots   driven.SnapshotStore
		meta        driven.MetaStore
		credentials driven.CredentialStore
	)
	store, err := sqlite.NewStore(configStore.GetString(cli.KeyDataDir))
	if err != nil {
		logger.Warn("%v: %v", domain.ErrLocalStoreUnavailable, err)
		records = memory.NewRecordStore()
		outbox = memory.NewOutboxStore()
		snapshots = memory.NewSnapshotStore()
		meta = memory.NewMetaStore()
		credentials = memory.NewCredentialStore()
	} else {
		defer store.Close()
		records = store.RecordStore()
		outbox = store.OutboxStore()
		snapshots = store.SnapshotStore()
		meta = store.MetaStore()
		credentials = store.CredentialStore()
	}

	// System of record. Startup proceeds without it: the flusher keeps
	// probing and drains the outbox once it comes up.
	var backend driven.Backend
	if dbURL := configStore.GetString(cli.KeyDatabaseURL); dbURL != "" {
		pg, err := postgres.New(ctx, dbURL)
		if err != nil {
			logger.Warn("Backend unavailable at startup: %v", err)
		} else {
			defer pg.Close()
			backend = pg
		}
	}

	upstream := social.NewClient(configStore.GetString(cli.KeyUpstreamURL))

	// The flusher always runs, even with no backend configured or reachable.
	// Mutations must land in the outbox in exactly those situations; the
	// probe loop keeps the state offline until Postgres comes up.
	var flusherOpts []services.FlusherOption
	if ms := configStore.GetInt(cli.KeyDebounceMS); ms > 0 {
		flusherOpts = append(flusherOpts, services.WithDebounce(time.Duration(ms)*time.Millisecond))
	}
	if s := configStore.GetInt(cli.KeyPingInterval); s > 0 {
		flusherOpts = append(flusherOpts, services.WithPingInterval(time.Duration(s)*time.Second))
	}
	flusher := services.NewFlusher(outbox, backend, flusherOpts...)
	flusher.Start(ctx)
	defer flusher.Stop()

	var collectorOpts []services.CollectorOption
	if limit := configStore.GetInt(cli.KeyPageLimit); limit > 0 {
		collectorOpts = append(collectorOpts, services.WithPageLimit(limit))
	}
	if window := configStore.GetInt(cli.KeyChildWindow); window > 0 {
		collectorOpts = append(collectorOpts, services.WithChildWindow(window))
	}

	mirror := services.NewMirrorService(
		records,
		snapshots,
		meta,
		credentials,
		upstream,
		extractor.NewNoop(),
		backend,
		flusher,
		social.Classify,
		collectorOpts...,
	)

	// Optional metrics endpoint for long-running invocations.
	if addr := os.Getenv("SHOPMIRROR_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("Metrics endpoint failed: %v", err)
			}
		}()
	}

	cli.Wire(cli.Deps{
		Mirror:      mirror,
		Flush:       flusher,
		Outbox:      outbox,
		Snapshots:   snapshots,
		Credentials: credentials,
		Config:      configStore,
	})

	return cli.Execute()
}
