package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Fetch outcomes, used as the metric label and in logs.
const (
	outcomeSuccess = "success"
	outcomeEmpty   = "empty"
	outcomeError   = "error"
)

// FetchStats counts fetch results across every station/product pair.
type FetchStats struct {
	Requests int
	Empty    int
	Failed   int
	Retries  int
}

type rawKey struct {
	stationID string
	product   domain.Product
}

// RawCache holds the fetched series of one run keyed by station and product.
// It is filled once before any reader sees it and never changes afterwards.
type RawCache struct {
	samples map[rawKey][]domain.RawSample
	failed  map[rawKey]error
}

// NewRawCache builds a cache from recorded samples, e.g. a snapshot.
func NewRawCache(samples map[string]map[domain.Product][]domain.RawSample) *RawCache {
	c := &RawCache{
		samples: make(map[rawKey][]domain.RawSample),
		failed:  make(map[rawKey]error),
	}
	for id, byProduct := range samples {
		for product, s := range byProduct {
			c.samples[rawKey{id, product}] = s
		}
	}
	return c
}

// Get returns the samples for one station/product pair. ok is false when the
// pair was not fetched or the fetch failed.
func (c *RawCache) Get(stationID string, product domain.Product) ([]domain.RawSample, bool) {
	s, ok := c.samples[rawKey{stationID, product}]
	return s, ok
}

// Err returns the final fetch error for a pair, if any.
func (c *RawCache) Err(stationID string, product domain.Product) error {
	return c.failed[rawKey{stationID, product}]
}

// Samples returns a copy of every successfully fetched series, nested by
// station ID then product.
func (c *RawCache) Samples() map[string]map[domain.Product][]domain.RawSample {
	out := make(map[string]map[domain.Product][]domain.RawSample)
	for k, s := range c.samples {
		if out[k.stationID] == nil {
			out[k.stationID] = make(map[domain.Product][]domain.RawSample, len(domain.Products))
		}
		out[k.stationID][k.product] = append([]domain.RawSample(nil), s...)
	}
	return out
}

type fetchJob struct {
	station domain.StationRecord
	product domain.Product
}

type fetchResult struct {
	samples []domain.RawSample
	err     error
	retries int
}

// Fetch requests every catalog station and product with bounded concurrency
// and returns once all requests have finished. A failed pair is recorded, not
// returned; the only error is ctx cancellation.
func (p *Pipeline) Fetch(ctx context.Context) (*RawCache, FetchStats, error) {
	exclude := domain.NewExclusionSet(p.opts.Excluded)

	var jobs []fetchJob
	for _, s := range p.opts.Catalog.Stations() {
		if p.opts.SkipExcludedFetch && exclude.Matches(s) {
			p.logger.Debug("skipping excluded station", "station_id", s.ID, "station", s.DisplayName)
			continue
		}
		for _, product := range domain.Products {
			jobs = append(jobs, fetchJob{station: s, product: product})
		}
	}

	// Each job owns one slot; slots are read only after Wait.
	results := make([]fetchResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = p.fetchOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, FetchStats{}, err
	}

	cache := &RawCache{
		samples: make(map[rawKey][]domain.RawSample, len(jobs)),
		failed:  make(map[rawKey]error),
	}
	var stats FetchStats
	for i, job := range jobs {
		r := results[i]
		key := rawKey{job.station.ID, job.product}
		stats.Requests++
		stats.Retries += r.retries

		outcome := outcomeSuccess
		switch {
		case r.err != nil:
			outcome = outcomeError
			stats.Failed++
			cache.failed[key] = r.err
		case len(r.samples) == 0:
			outcome = outcomeEmpty
			stats.Empty++
			cache.samples[key] = r.samples
		default:
			cache.samples[key] = r.samples
		}
		p.metrics.FetchRequests.WithLabelValues(string(job.product), outcome).Inc()
	}

	p.logger.Info("fetch complete",
		"requests", stats.Requests,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"retries", stats.Retries,
	)
	return cache, stats, nil
}

// permanent is implemented by source errors that know retrying cannot help.
type permanent interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}

// fetchOne runs one job with a per-attempt timeout and exponential backoff.
func (p *Pipeline) fetchOne(ctx context.Context, job fetchJob) fetchResult {
	var res fetchResult

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.Retries)), ctx)

	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()

		samples, err := p.source.Fetch(attemptCtx, job.station.ID, job.product, p.opts.Window)
		if err != nil {
			if ctx.Err() != nil || isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res.samples = samples
		return nil
	}

	notify := func(err error, wait time.Duration) {
		res.retries++
		p.metrics.FetchRetries.Inc()
		p.logger.Debug("fetch retry",
			"station_id", job.station.ID,
			"product", job.product,
			"attempt", res.retries,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if !errors.Is(err, domain.ErrFetchFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrFetchFailure, err)
		}
		res.err = err
		p.logger.Warn("fetch failed",
			"station_id", job.station.ID,
			"station", job.station.DisplayName,
			"product", job.product,
			"attempts", res.retries+1,
			"error", err,
		)
		return res
	}

	if len(res.samples) == 0 {
		p.logger.Info("no data",
			"station_id", job.station.ID,
			"station", job.station.DisplayName,
			"product", job.product,
		)
	}
	return res
}
