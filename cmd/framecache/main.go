// Command framecache runs one fetch, transform and export pass and writes the
// frame cache artifact consumed by the wave renderer.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/wave-frame-cache/internal/adapter/kafka"
	"github.com/couchcryptid/wave-frame-cache/internal/adapter/noaa"
	"github.com/couchcryptid/wave-frame-cache/internal/adapter/snapshot"
	"github.com/couchcryptid/wave-frame-cache/internal/config"
	"github.com/couchcryptid/wave-frame-cache/internal/export"
	"github.com/couchcryptid/wave-frame-cache/internal/observability"
	"github.com/couchcryptid/wave-frame-cache/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		writeMetrics(cfg, logger)
		os.Exit(1)
	}
	writeMetrics(cfg, logger)
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	runCfg, err := config.LoadRun(cfg.RunConfigPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	var source pipeline.SeriesSource
	switch cfg.Source {
	case config.SourceSnapshot:
		snap, err := snapshot.Read(cfg.SnapshotPath)
		if err != nil {
			return err
		}
		if !snap.Covers(runCfg.Window) {
			logger.Warn("snapshot does not cover the run window", "path", cfg.SnapshotPath)
		}
		source = snapshot.NewSource(snap)
		logger.Info("replaying snapshot", "path", cfg.SnapshotPath, "recorded_at", snap.RecordedAt)
	default:
		source = noaa.NewClient(cfg.NOAABaseURL, cfg.FetchTimeout, cfg.NOAARateLimit, logger, metrics, clock)
	}

	sinks := []export.Sink{export.NewFileSink(cfg.OutputPath)}
	if cfg.S3Enabled() {
		s3Sink, err := export.NewS3Sink(ctx, export.S3Config{
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, s3Sink)
	}
	exporter := export.NewExporter(export.Meta{DataSource: cfg.Source, Description: runCfg.Description}, logger, sinks...)

	var notifier pipeline.Notifier
	if cfg.KafkaEnabled() {
		n := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		notifier = n
	}

	p := pipeline.New(source, exporter, notifier, pipeline.Options{
		Catalog:           runCfg.Catalog,
		Reference:         runCfg.Reference,
		Window:            runCfg.Window,
		Excluded:          runCfg.Excluded,
		GridStep:          runCfg.GridStep,
		Concurrency:       cfg.FetchConcurrency,
		FetchTimeout:      cfg.FetchTimeout,
		Retries:           cfg.FetchRetries,
		InitialBackoff:    cfg.FetchBackoff,
		SkipExcludedFetch: cfg.SkipExcludedFetch,
	}, logger, metrics, clock)

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("frame cache written", "locations", res.Report.Locations, "sha256", res.Report.SHA256)
	return nil
}

func writeMetrics(cfg *config.Config, logger *slog.Logger) {
	if cfg.MetricsTextfile == "" {
		return
	}
	if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
	}
}
