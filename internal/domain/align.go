package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order. CO-OPS uses the first; the rest cover
// recorded snapshots and hand-written fixtures.
var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// AlignStats counts samples discarded while aligning one station.
type AlignStats struct {
	MalformedTimestamps int
	NonNumericValues    int
	DuplicateTimestamps int
	NonFiniteDeltas     int
	Unmatched           int
}

// Dropped returns the total number of raw samples that did not contribute to
// the anomaly series.
func (s AlignStats) Dropped() int {
	return s.MalformedTimestamps + s.NonNumericValues + s.DuplicateTimestamps + s.NonFiniteDeltas + s.Unmatched
}

// Add accumulates other into s.
func (s *AlignStats) Add(other AlignStats) {
	s.MalformedTimestamps += other.MalformedTimestamps
	s.NonNumericValues += other.NonNumericValues
	s.DuplicateTimestamps += other.DuplicateTimestamps
	s.NonFiniteDeltas += other.NonFiniteDeltas
	s.Unmatched += other.Unmatched
}

// ParseTimestamp parses a raw sample timestamp. Zone-less values are UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}

// ParseValue parses a raw sample value. Missing, non-numeric and non-finite
// values are rejected.
func ParseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing", ErrNonNumericValue)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonNumericValue, raw)
	}
	return v, nil
}

type reading struct {
	t time.Time
	v float64
}

// Align inner-joins observed and predicted samples on exact timestamp
// equality and returns delta = observed - predicted for every match.
//
// Inputs may be unordered and may contain duplicates; the first valid
// occurrence of a timestamp wins. Samples with unparsable timestamps or
// values are dropped individually. Timestamps present in only one product are
// dropped; the join applies no tolerance. An empty result means the station
// has no usable data.
func Align(stationID string, observed, predicted []RawSample) (AnomalySeries, AlignStats) {
	var stats AlignStats
	obs := parseReadings(observed, &stats)
	pred := parseReadings(predicted, &stats)

	samples := make([]AlignedSample, 0, min(len(obs), len(pred)))
	i, j := 0, 0
	for i < len(obs) && j < len(pred) {
		switch {
		case obs[i].t.Before(pred[j].t):
			stats.Unmatched++
			i++
		case pred[j].t.Before(obs[i].t):
			stats.Unmatched++
			j++
		default:
			delta := obs[i].v - pred[j].v
			if math.IsNaN(delta) || math.IsInf(delta, 0) {
				stats.NonFiniteDeltas++
			} else {
				samples = append(samples, AlignedSample{
					Timestamp: obs[i].t,
					Observed:  obs[i].v,
					Predicted: pred[j].v,
					Delta:     delta,
				})
			}
			i++
			j++
		}
	}
	stats.Unmatched += len(obs) - i + len(pred) - j

	return AnomalySeries{StationID: stationID, Samples: samples}, stats
}

// parseReadings validates raw samples and returns them sorted by time with
// duplicate timestamps removed, keeping the first occurrence in input order.
func parseReadings(raw []RawSample, stats *AlignStats) []reading {
	out := make([]reading, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTimestamp(s.Timestamp)
		if err != nil {
			stats.MalformedTimestamps++
			continue
		}
		v, err := ParseValue(s.Value)
		if err != nil {
			stats.NonNumericValues++
			continue
		}
		out = append(out, reading{t: t, v: v})
	}

	// Stable so that equal timestamps keep input order and the first survives.
	sort.SliceStable(out, func(a, b int) bool { return out[a].t.Before(out[b].t) })

	uniq := out[:0]
	for _, r := range out {
		if len(uniq) > 0 && uniq[len(uniq)-1].t.Equal(r.t) {
			stats.DuplicateTimestamps++
			continue
		}
		uniq = append(uniq, r)
	}
	return uniq
}
