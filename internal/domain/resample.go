package domain

import (
	"math"
	"sort"
	"time"
)

// Grid step bounds. A step below MinGridStep, or one that would place more
// than MaxGridPoints on the timeline, is ignored and the union timeline is
// used instead.
const (
	MinGridStep   = time.Second
	MaxGridPoints = 1 << 20
)

// ResampledMatrix holds every surviving station's anomaly on one shared
// timeline. Values[j][i] is station Stations[j] at Timeline[i]; every cell is
// finite.
type ResampledMatrix struct {
	Timeline []time.Time
	Stations []string
	Values   [][]float64
}

// Column returns the values for stationID, or false if the station is not
// in the matrix.
func (m ResampledMatrix) Column(stationID string) ([]float64, bool) {
	for j, id := range m.Stations {
		if id == stationID {
			return m.Values[j], true
		}
	}
	return nil, false
}

// Has reports whether stationID has a column.
func (m ResampledMatrix) Has(stationID string) bool {
	_, ok := m.Column(stationID)
	return ok
}

// ResampleStats describes what the resampler dropped or degraded.
type ResampleStats struct {
	// Absent lists stations with zero samples inside the window, in input order.
	Absent []string
	// SamplesOutsideWindow counts aligned samples discarded by the window.
	SamplesOutsideWindow int
	// EmptyTimeline is set when the canonical timeline has fewer than two points.
	EmptyTimeline bool
	// GridStepIgnored is set when a positive step was out of bounds.
	GridStepIgnored bool
}

// Resample places every series on the canonical timeline for w and fills
// gaps. Columns follow order; stations missing from series, or with no
// samples in w, are reported in ResampleStats.Absent and get no column.
//
// Interior gaps are linearly interpolated in time. Cells before a station's
// first sample or after its last take that sample's value.
func Resample(series map[string]AnomalySeries, order []string, w Window, step time.Duration) (ResampledMatrix, ResampleStats) {
	var stats ResampleStats

	inWindow := make(map[string][]AlignedSample, len(series))
	for _, id := range order {
		s, ok := series[id]
		if !ok {
			continue
		}
		rows := selectRows(s.Samples, w)
		stats.SamplesOutsideWindow += len(s.Samples) - len(rows)
		if len(rows) > 0 {
			inWindow[id] = rows
		}
	}

	timeline, ignored := buildTimeline(inWindow, step)
	stats.GridStepIgnored = ignored
	stats.EmptyTimeline = len(timeline) < 2

	m := ResampledMatrix{Timeline: timeline}
	for _, id := range order {
		known, ok := inWindow[id]
		if !ok || len(timeline) == 0 {
			stats.Absent = append(stats.Absent, id)
			continue
		}
		col := interpolateColumn(known, timeline)
		extendBoundary(col, timeline, known)
		m.Stations = append(m.Stations, id)
		m.Values = append(m.Values, col)
	}

	return m, stats
}

// BuildTimeline returns the canonical timeline for series restricted to w.
// With step <= 0 it is the sorted, deduplicated union of all sample
// timestamps. With step > 0 it is a uniform grid from the earliest to the
// latest in-window timestamp, unless the step is out of bounds.
func BuildTimeline(series map[string]AnomalySeries, w Window, step time.Duration) []time.Time {
	inWindow := make(map[string][]AlignedSample, len(series))
	for id, s := range series {
		if rows := selectRows(s.Samples, w); len(rows) > 0 {
			inWindow[id] = rows
		}
	}
	timeline, _ := buildTimeline(inWindow, step)
	return timeline
}

// buildTimeline also reports whether a positive step was ignored.
func buildTimeline(inWindow map[string][]AlignedSample, step time.Duration) ([]time.Time, bool) {
	seen := make(map[int64]struct{})
	var union []time.Time
	for _, rows := range inWindow {
		for _, r := range rows {
			k := r.Timestamp.UnixNano()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			union = append(union, r.Timestamp)
		}
	}
	sort.Slice(union, func(a, b int) bool { return union[a].Before(union[b]) })

	if step <= 0 {
		return union, false
	}
	if len(union) < 2 {
		return union, step < MinGridStep
	}

	first, last := union[0], union[len(union)-1]
	points, ok := GridPoints(last.Sub(first), step)
	if !ok {
		return union, true
	}
	grid := make([]time.Time, 0, points)
	for t := first; !t.After(last); t = t.Add(step) {
		grid = append(grid, t)
	}
	return grid, false
}

// GridPoints returns the number of grid points a step places on a span, and
// false if the step is below MinGridStep or the count exceeds MaxGridPoints.
func GridPoints(span, step time.Duration) (int, bool) {
	if step < MinGridStep {
		return 0, false
	}
	n := span/step + 1
	if n > MaxGridPoints {
		return 0, false
	}
	return int(n), true
}

// selectRows returns the samples that fall inside w.
// Pre: samples sorted ascending. Post: a sorted, contiguous sub-slice.
func selectRows(samples []AlignedSample, w Window) []AlignedSample {
	lo := sort.Search(len(samples), func(i int) bool { return !samples[i].Timestamp.Before(w.Start) })
	hi := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp.After(w.End) })
	if lo >= hi {
		return nil
	}
	return samples[lo:hi]
}

// interpolateColumn evaluates known at every timeline point inside
// [known[0], known[last]] by linear interpolation in time.
// Pre: known non-empty and sorted. Post: cells outside that span are NaN.
func interpolateColumn(known []AlignedSample, timeline []time.Time) []float64 {
	col := make([]float64, len(timeline))
	k := 0
	for i, t := range timeline {
		col[i] = math.NaN()
		if t.Before(known[0].Timestamp) || t.After(known[len(known)-1].Timestamp) {
			continue
		}
		// Advance to the last known sample at or before t.
		for k+1 < len(known) && !known[k+1].Timestamp.After(t) {
			k++
		}
		lo := known[k]
		if lo.Timestamp.Equal(t) || k+1 == len(known) {
			col[i] = lo.Delta
			continue
		}
		hi := known[k+1]
		frac := float64(t.Sub(lo.Timestamp)) / float64(hi.Timestamp.Sub(lo.Timestamp))
		col[i] = lo.Delta + frac*(hi.Delta-lo.Delta)
	}
	return col
}

// extendBoundary fills cells before the first known sample with its value and
// cells after the last known sample with that value. The extension is flat.
// Pre: col produced by interpolateColumn for the same known and timeline.
// Post: every cell is finite.
func extendBoundary(col []float64, timeline []time.Time, known []AlignedSample) {
	first, last := known[0], known[len(known)-1]
	for i, t := range timeline {
		switch {
		case t.Before(first.Timestamp):
			col[i] = first.Delta
		case t.After(last.Timestamp):
			col[i] = last.Delta
		}
	}
}
