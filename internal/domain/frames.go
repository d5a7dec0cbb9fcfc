package domain

import (
	"fmt"
	"math"
	"time"
)

// FrameRecord is one animation timestep. Distances and Amplitudes are
// positionally aligned with FrameCache.StationOrder.
type FrameRecord struct {
	Index      int
	Timestamp  time.Time
	Distances  []float64
	Amplitudes []float64
}

// FrameCache is the complete output of one run. It is built once and never
// patched; a new run builds a new cache.
type FrameCache struct {
	StationOrder      []string
	StationDistanceKm map[string]float64
	// Stations holds the catalog record of every active station, keyed by
	// display name.
	Stations          map[string]StationRecord
	Frames            []FrameRecord
	GeneratedAt       time.Time
}

// FrameCount returns the number of frames.
func (c FrameCache) FrameCount() int { return len(c.Frames) }

// BuildFrameCache emits one frame per timeline position of m, with columns in
// sel order. It performs no numeric transformation. A non-finite value, a
// non-increasing timestamp or a station missing from m is a logic defect
// upstream and fails with ErrInvariantViolation.
func BuildFrameCache(m ResampledMatrix, sel Selection, generatedAt time.Time) (FrameCache, error) {
	if sel.Len() == 0 {
		return FrameCache{}, ErrNoStations
	}
	if len(sel.DistancesKm) != sel.Len() {
		return FrameCache{}, fmt.Errorf("%w: %d stations but %d distances", ErrInvariantViolation, sel.Len(), len(sel.DistancesKm))
	}

	cache := FrameCache{
		StationOrder:      make([]string, sel.Len()),
		StationDistanceKm: make(map[string]float64, sel.Len()),
		Stations:          make(map[string]StationRecord, sel.Len()),
		Frames:            make([]FrameRecord, 0, len(m.Timeline)),
		GeneratedAt:       generatedAt.UTC(),
	}

	columns := make([][]float64, sel.Len())
	for j, s := range sel.Stations {
		col, ok := m.Column(s.ID)
		if !ok {
			return FrameCache{}, fmt.Errorf("%w: station %s selected but not in matrix", ErrInvariantViolation, s.ID)
		}
		if len(col) != len(m.Timeline) {
			return FrameCache{}, fmt.Errorf("%w: station %s has %d values for %d timestamps", ErrInvariantViolation, s.ID, len(col), len(m.Timeline))
		}
		d := sel.DistancesKm[j]
		if !isFinite(d) {
			return FrameCache{}, fmt.Errorf("%w: station %s distance is %v", ErrInvariantViolation, s.ID, d)
		}
		if _, dup := cache.StationDistanceKm[s.DisplayName]; dup {
			return FrameCache{}, fmt.Errorf("%w: station name %q selected twice", ErrInvariantViolation, s.DisplayName)
		}
		cache.StationOrder[j] = s.DisplayName
		cache.StationDistanceKm[s.DisplayName] = d
		cache.Stations[s.DisplayName] = s
		columns[j] = col
	}

	for i, t := range m.Timeline {
		if i > 0 && !t.After(m.Timeline[i-1]) {
			return FrameCache{}, fmt.Errorf("%w: timestamp %s at frame %d does not follow %s",
				ErrInvariantViolation, t.Format(time.RFC3339), i, m.Timeline[i-1].Format(time.RFC3339))
		}

		frame := FrameRecord{
			Index:      i,
			Timestamp:  t,
			Distances:  make([]float64, sel.Len()),
			Amplitudes: make([]float64, sel.Len()),
		}
		copy(frame.Distances, sel.DistancesKm)
		for j, col := range columns {
			v := col[i]
			if !isFinite(v) {
				return FrameCache{}, fmt.Errorf("%w: station %s value %v at frame %d",
					ErrInvariantViolation, sel.Stations[j].ID, v, i)
			}
			frame.Amplitudes[j] = v
		}
		cache.Frames = append(cache.Frames, frame)
	}

	return cache, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ExportReport describes a written artifact.
type ExportReport struct {
	Locations        []string
	Bytes            int
	SHA256           string
	NonFiniteCoerced int
}
