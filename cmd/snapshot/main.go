// Command snapshot fetches every configured station from NOAA CO-OPS and
// records the raw responses, so framecache can replay them with
// SOURCE=snapshot.
//
// Usage:
//
//	go run ./cmd/snapshot -out data/raw_snapshot.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wave-frame-cache/internal/adapter/noaa"
	"github.com/couchcryptid/wave-frame-cache/internal/adapter/snapshot"
	"github.com/couchcryptid/wave-frame-cache/internal/config"
	"github.com/couchcryptid/wave-frame-cache/internal/observability"
	"github.com/couchcryptid/wave-frame-cache/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("snapshot failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the snapshot (default SNAPSHOT_PATH)")
	runPath := flag.String("run", "", "run configuration YAML (default RUN_CONFIG or the embedded run)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *out == "" {
		*out = cfg.SnapshotPath
	}
	if *runPath == "" {
		*runPath = cfg.RunConfigPath
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	runCfg, err := config.LoadRun(*runPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	client := noaa.NewClient(cfg.NOAABaseURL, cfg.FetchTimeout, cfg.NOAARateLimit, logger, metrics, clock)
	p := pipeline.New(client, nil, nil, pipeline.Options{
		Catalog:           runCfg.Catalog,
		Reference:         runCfg.Reference,
		Window:            runCfg.Window,
		Excluded:          runCfg.Excluded,
		Concurrency:       cfg.FetchConcurrency,
		FetchTimeout:      cfg.FetchTimeout,
		Retries:           cfg.FetchRetries,
		InitialBackoff:    cfg.FetchBackoff,
		SkipExcludedFetch: cfg.SkipExcludedFetch,
	}, logger, metrics, clock)

	raw, stats, err := p.Fetch(ctx)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		logger.Warn("some series failed and are missing from the snapshot", "failed", stats.Failed)
	}

	if err := snapshot.Write(*out, snapshot.New(raw.Samples(), runCfg.Window, clock.Now())); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logger.Info("snapshot written", "path", *out, "requests", stats.Requests, "empty", stats.Empty, "failed", stats.Failed)
	return nil
}
