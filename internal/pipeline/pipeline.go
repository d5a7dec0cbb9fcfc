package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/couchcryptid/wave-frame-cache/internal/observability"
	"github.com/jonboulle/clockwork"
)

// SeriesSource fetches one station/product series for a window. It returns an
// empty slice, not an error, when the remote has no data.
type SeriesSource interface {
	Fetch(ctx context.Context, stationID string, product domain.Product, w domain.Window) ([]domain.RawSample, error)
}

// CacheLoader persists a finished frame cache. It must either write the
// complete artifact or leave no trace at the destination.
type CacheLoader interface {
	Load(ctx context.Context, cache domain.FrameCache) (domain.ExportReport, error)
}

// Notifier announces a written frame cache. Failures are logged, not fatal.
type Notifier interface {
	Notify(ctx context.Context, cache domain.FrameCache, report domain.ExportReport) error
}

// Options is the immutable run description shared by every stage.
type Options struct {
	Catalog   domain.StationCatalog
	Reference domain.ReferencePoint
	Window    domain.Window
	Excluded  []string
	GridStep  time.Duration

	Concurrency       int
	FetchTimeout      time.Duration
	Retries           int
	InitialBackoff    time.Duration
	SkipExcludedFetch bool
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	return o
}

// Result is the outcome of a successful run.
type Result struct {
	Cache   domain.FrameCache
	Report  domain.ExportReport
	Summary Summary
}

// Pipeline runs fetch, transform and export once per call to Run.
type Pipeline struct {
	source   SeriesSource
	loader   CacheLoader
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// New creates a Pipeline. loader and notifier may be nil; a nil loader makes
// Run stop after building the cache.
func New(source SeriesSource, loader CacheLoader, notifier Notifier, opts Options, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:   source,
		loader:   loader,
		notifier: notifier,
		opts:     opts.withDefaults(),
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// Run fetches every station, builds the frame cache and hands it to the
// loader. Per-station and per-sample failures are counted in the summary;
// Run fails only when no station survives, an invariant breaks, the loader
// fails or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := p.clock.Now()
	p.logger.Info("run started",
		"stations", p.opts.Catalog.Len(),
		"window_start", p.opts.Window.Start.Format(time.RFC3339),
		"window_end", p.opts.Window.End.Format(time.RFC3339),
		"concurrency", p.opts.Concurrency,
	)

	raw, fetchStats, err := p.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	cache, summary, err := p.Transform(raw)
	summary.Fetch = fetchStats
	if err != nil {
		p.logger.Error("transform failed", append(summary.LogAttrs(), "error", err)...)
		return Result{Summary: summary}, err
	}

	res := Result{Cache: cache, Summary: summary}
	if p.loader == nil {
		res.Summary.Duration = p.clock.Since(start)
		return res, nil
	}

	report, err := p.loader.Load(ctx, cache)
	if err != nil {
		if !errors.Is(err, domain.ErrSerializationFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrSerializationFailure, err)
		}
		p.logger.Error("export failed", "error", err)
		return Result{Summary: summary}, err
	}
	res.Report = report
	res.Summary.NonFiniteCoerced = report.NonFiniteCoerced
	res.Summary.ArtifactBytes = report.Bytes

	p.metrics.NonFiniteCoerced.Add(float64(report.NonFiniteCoerced))
	p.metrics.ArtifactBytes.Set(float64(report.Bytes))

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, cache, report); err != nil {
			p.logger.Warn("notify failed", "error", err)
		}
	}

	res.Summary.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(res.Summary.Duration.Seconds())
	p.metrics.LastSuccessTimestamp.Set(float64(p.clock.Now().Unix()))

	p.logger.Info("run complete", append(res.Summary.LogAttrs(),
		"locations", report.Locations,
		"sha256", report.SHA256,
	)...)
	return res, nil
}
