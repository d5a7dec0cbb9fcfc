package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
)

// Station exclusion reasons, used as the metric label.
const (
	reasonConfigured = "configured"
	reasonNoData     = "no_data"
	reasonNoOverlap  = "no_overlap"
)

// Transform aligns, resamples, selects and frames the contents of raw. It is
// deterministic: the same raw cache and clock reading give the same frame
// cache.
func (p *Pipeline) Transform(raw *RawCache) (domain.FrameCache, Summary, error) {
	summary := Summary{StationsConfigured: p.opts.Catalog.Len()}
	exclude := domain.NewExclusionSet(p.opts.Excluded)
	noOverlap := make(map[string]bool)

	series := make(map[string]domain.AnomalySeries, p.opts.Catalog.Len())
	for _, s := range p.opts.Catalog.Stations() {
		observed, okObs := raw.Get(s.ID, domain.ProductObserved)
		predicted, okPred := raw.Get(s.ID, domain.ProductPredicted)
		if !okObs && !okPred {
			continue
		}

		aligned, stats := domain.Align(s.ID, observed, predicted)
		summary.Samples.Add(stats)
		if aligned.Empty() {
			if len(observed) > 0 && len(predicted) > 0 && !exclude.Matches(s) {
				noOverlap[s.ID] = true
				p.logger.Warn("station dropped",
					"station_id", s.ID,
					"station", s.DisplayName,
					"error", domain.ErrNoOverlap,
				)
			}
			continue
		}
		if stats.Dropped() > 0 {
			p.logger.Debug("samples dropped",
				"station_id", s.ID,
				"malformed_timestamp", stats.MalformedTimestamps,
				"non_numeric", stats.NonNumericValues,
				"duplicate_timestamp", stats.DuplicateTimestamps,
				"unmatched", stats.Unmatched,
			)
		}
		series[s.ID] = aligned
	}
	p.recordDropped(summary.Samples)

	matrix, rstats := domain.Resample(series, p.opts.Catalog.IDs(), p.opts.Window, p.opts.GridStep)
	summary.SamplesOutsideWindow = rstats.SamplesOutsideWindow
	summary.EmptyTimeline = rstats.EmptyTimeline
	if rstats.GridStepIgnored {
		p.logger.Warn("grid step out of bounds, using union timeline",
			"grid_step", p.opts.GridStep.String(),
			"min", domain.MinGridStep.String(),
			"max_points", domain.MaxGridPoints,
		)
	}
	if rstats.EmptyTimeline {
		p.logger.Warn("degenerate timeline", "points", len(matrix.Timeline), "error", domain.ErrEmptyTimeline)
	}

	sel, err := domain.SelectStations(matrix, p.opts.Catalog, p.opts.Reference, p.opts.Excluded)
	summary.StationsExcluded = sel.Excluded
	for _, name := range sel.Absent {
		s := p.stationByName(name)
		if noOverlap[s.ID] {
			summary.StationsNoOverlap = append(summary.StationsNoOverlap, name)
		} else {
			summary.StationsNoData = append(summary.StationsNoData, name)
		}
	}
	p.metrics.StationsExcluded.WithLabelValues(reasonConfigured).Add(float64(len(summary.StationsExcluded)))
	p.metrics.StationsExcluded.WithLabelValues(reasonNoData).Add(float64(len(summary.StationsNoData)))
	p.metrics.StationsExcluded.WithLabelValues(reasonNoOverlap).Add(float64(len(summary.StationsNoOverlap)))
	if err != nil {
		return domain.FrameCache{}, summary, err
	}

	cache, err := domain.BuildFrameCache(matrix, sel, p.clock.Now().UTC())
	if err != nil {
		if !errors.Is(err, domain.ErrInvariantViolation) && !errors.Is(err, domain.ErrNoStations) {
			err = fmt.Errorf("%w: %w", domain.ErrInvariantViolation, err)
		}
		return domain.FrameCache{}, summary, err
	}

	summary.StationsActive = sel.Len()
	summary.Frames = cache.FrameCount()
	p.metrics.StationsActive.Set(float64(summary.StationsActive))
	p.metrics.FramesBuilt.Set(float64(summary.Frames))
	return cache, summary, nil
}

func (p *Pipeline) stationByName(name string) domain.StationRecord {
	for _, s := range p.opts.Catalog.Stations() {
		if s.DisplayName == name {
			return s
		}
	}
	return domain.StationRecord{}
}

func (p *Pipeline) recordDropped(s domain.AlignStats) {
	p.metrics.SamplesDropped.WithLabelValues("malformed_timestamp").Add(float64(s.MalformedTimestamps))
	p.metrics.SamplesDropped.WithLabelValues("non_numeric").Add(float64(s.NonNumericValues))
	p.metrics.SamplesDropped.WithLabelValues("duplicate_timestamp").Add(float64(s.DuplicateTimestamps))
	p.metrics.SamplesDropped.WithLabelValues("non_finite_delta").Add(float64(s.NonFiniteDeltas))
	p.metrics.SamplesDropped.WithLabelValues("unmatched").Add(float64(s.Unmatched))
}
