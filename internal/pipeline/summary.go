package pipeline

import (
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
)

// Summary aggregates every recoverable failure of a run alongside the size of
// what was produced.
type Summary struct {
	Fetch FetchStats

	Samples              domain.AlignStats
	SamplesOutsideWindow int

	StationsConfigured int
	StationsExcluded   []string
	StationsNoData     []string
	StationsNoOverlap  []string
	StationsActive     int

	Frames        int
	EmptyTimeline bool

	NonFiniteCoerced int
	ArtifactBytes    int
	Duration         time.Duration
}

// LogAttrs returns the summary as slog key/value pairs.
func (s Summary) LogAttrs() []any {
	return []any{
		"fetch_requests", s.Fetch.Requests,
		"fetch_empty", s.Fetch.Empty,
		"fetch_failed", s.Fetch.Failed,
		"fetch_retries", s.Fetch.Retries,
		"samples_dropped", s.Samples.Dropped(),
		"samples_outside_window", s.SamplesOutsideWindow,
		"stations_configured", s.StationsConfigured,
		"stations_excluded", s.StationsExcluded,
		"stations_no_data", s.StationsNoData,
		"stations_no_overlap", s.StationsNoOverlap,
		"stations_active", s.StationsActive,
		"frames", s.Frames,
		"empty_timeline", s.EmptyTimeline,
		"nonfinite_coerced", s.NonFiniteCoerced,
		"artifact_bytes", s.ArtifactBytes,
		"duration", s.Duration,
	}
}
