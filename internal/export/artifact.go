package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidArtifact is returned when an artifact cannot be decoded or breaks
// a schema invariant.
var ErrInvalidArtifact = errors.New("invalid artifact")

// maxProblems caps the number of violations Validate reports.
const maxProblems = 20

// Artifact is the decoded form of the interchange file.
type Artifact struct {
	Metadata Metadata         `json:"metadata"`
	Frames   map[string]Frame `json:"frames"`
}

// Metadata is the artifact header.
type Metadata struct {
	SchemaVersion     string             `json:"schema_version"`
	StationOrder      []string           `json:"station_order"`
	StationDistanceKm map[string]float64 `json:"station_distance_km"`
	Stations          map[string]Station `json:"stations"`
	FrameCount        int                `json:"frame_count"`
	GeneratedAt       time.Time          `json:"generated_at"`
	DataSource        string             `json:"data_source"`
	Description       string             `json:"description"`
	NonFiniteCoerced  int                `json:"nonfinite_coerced"`
}

// Station locates one gauge on the renderer's map.
type Station struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Frame is one decoded frame. A nil element was written as null.
type Frame struct {
	Timestamp  time.Time  `json:"timestamp"`
	XValues    []*float64 `json:"x_values"`
	WaveValues []*float64 `json:"wave_values"`
}

// Decode parses an artifact without validating it.
func Decode(data []byte) (Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	return a, nil
}

// Frame returns frame i.
func (a Artifact) Frame(i int) (Frame, bool) {
	f, ok := a.Frames[strconv.Itoa(i)]
	return f, ok
}

// Validate checks the schema version, the station header, the header against
// the frames, dense frame keys, strictly increasing timestamps, per-frame array lengths and
// non-decreasing distances. All violations found are joined into one error
// wrapping ErrInvalidArtifact.
func Validate(a Artifact) error {
	var problems []error
	report := func(format string, args ...any) {
		if len(problems) < maxProblems {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	m := a.Metadata
	if m.SchemaVersion != SchemaVersion {
		report("schema_version %q, want %q", m.SchemaVersion, SchemaVersion)
	}
	if len(m.StationOrder) == 0 {
		report("station_order is empty")
	}
	seen := make(map[string]bool, len(m.StationOrder))
	for _, name := range m.StationOrder {
		if seen[name] {
			report("station %q appears twice in station_order", name)
		}
		seen[name] = true
		if _, ok := m.StationDistanceKm[name]; !ok {
			report("station %q has no station_distance_km entry", name)
		}
		st, ok := m.Stations[name]
		switch {
		case !ok:
			report("station %q has no stations entry", name)
		case st.ID == "":
			report("station %q has no id", name)
		case st.Lat < -90 || st.Lat > 90 || st.Lon < -180 || st.Lon > 180:
			report("station %q position (%v, %v) out of range", name, st.Lat, st.Lon)
		}
	}
	if len(m.StationDistanceKm) != len(seen) {
		report("station_distance_km has %d entries for %d stations", len(m.StationDistanceKm), len(seen))
	}
	if len(m.Stations) != len(seen) {
		report("stations has %d entries for %d stations", len(m.Stations), len(seen))
	}
	if m.FrameCount != len(a.Frames) {
		report("frame_count %d but %d frames", m.FrameCount, len(a.Frames))
	}
	if m.GeneratedAt.IsZero() {
		report("generated_at is missing")
	}

	for key := range a.Frames {
		if i, err := strconv.Atoi(key); err != nil || i < 0 || i >= len(a.Frames) || strconv.Itoa(i) != key {
			report("frame key %q is not a dense index", key)
		}
	}

	var (
		prev  time.Time
		nulls int
	)
	for i := range len(a.Frames) {
		f, ok := a.Frame(i)
		if !ok {
			report("frame %d missing", i)
			continue
		}
		if i > 0 && !f.Timestamp.After(prev) {
			report("frame %d timestamp %s not after %s", i, f.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = f.Timestamp

		if len(f.XValues) != len(m.StationOrder) || len(f.WaveValues) != len(m.StationOrder) {
			report("frame %d has %d x_values and %d wave_values for %d stations",
				i, len(f.XValues), len(f.WaveValues), len(m.StationOrder))
			continue
		}
		for j, x := range f.XValues {
			if x == nil {
				nulls++
				report("frame %d x_values[%d] is null", i, j)
				continue
			}
			if want, ok := m.StationDistanceKm[m.StationOrder[j]]; ok && *x != want {
				report("frame %d x_values[%d] = %v, station_distance_km says %v", i, j, *x, want)
			}
			if j > 0 && f.XValues[j-1] != nil && *x < *f.XValues[j-1] {
				report("frame %d x_values not sorted at %d", i, j)
			}
		}
		nulls += countNulls(f.WaveValues)
	}
	if nulls > m.NonFiniteCoerced {
		report("%d null values but nonfinite_coerced is %d", nulls, m.NonFiniteCoerced)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidArtifact, errors.Join(problems...))
}

func countNulls(vs []*float64) int {
	n := 0
	for _, v := range vs {
		if v == nil {
			n++
		}
	}
	return n
}
