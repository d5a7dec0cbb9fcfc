package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseTime    = time.Date(2025, 7, 29, 23, 0, 0, 0, time.UTC)
	generatedAt = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
)

// stationsFor gives every name a catalog record with a made-up position.
func stationsFor(names ...string) map[string]domain.StationRecord {
	out := make(map[string]domain.StationRecord, len(names))
	for i, name := range names {
		out[name] = domain.StationRecord{
			ID:          fmt.Sprintf("%07d", 1612340+i),
			DisplayName: name,
			Latitude:    21.5 - float64(i),
			Longitude:   -157.75,
		}
	}
	return out
}

// twoStationCache is the B-then-A cache with B at 5 km (4,5,6) and A at
// 10 km (1,2,3).
func twoStationCache() domain.FrameCache {
	cache := domain.FrameCache{
		StationOrder:      []string{"B", "A"},
		StationDistanceKm: map[string]float64{"B": 5, "A": 10},
		Stations:          stationsFor("B", "A"),
		GeneratedAt:       generatedAt,
	}
	for i := range 3 {
		cache.Frames = append(cache.Frames, domain.FrameRecord{
			Index:      i,
			Timestamp:  baseTime.Add(time.Duration(i) * time.Minute),
			Distances:  []float64{5, 10},
			Amplitudes: []float64{float64(4 + i), float64(1 + i)},
		})
	}
	return cache
}

func TestEncode_TwoStationScenario(t *testing.T) {
	data, stats, err := Encode(twoStationCache(), Meta{DataSource: "test", Description: "two gauges"})
	require.NoError(t, err)

	want := `{"metadata":{"schema_version":"1","station_order":["B","A"],"station_distance_km":{"B":5,"A":10},` +
		`"stations":{"B":{"id":"1612340","lat":21.5,"lon":-157.75},"A":{"id":"1612341","lat":20.5,"lon":-157.75}},` +
		`"frame_count":3,"generated_at":"2025-08-01T12:00:00Z","data_source":"test","description":"two gauges",` +
		`"nonfinite_coerced":0},` +
		`"frames":{` +
		`"0":{"timestamp":"2025-07-29T23:00:00Z","x_values":[5,10],"wave_values":[4,1]},` +
		`"1":{"timestamp":"2025-07-29T23:01:00Z","x_values":[5,10],"wave_values":[5,2]},` +
		`"2":{"timestamp":"2025-07-29T23:02:00Z","x_values":[5,10],"wave_values":[6,3]}}}`
	assert.Equal(t, want, string(data))
	assert.Zero(t, stats.NonFiniteCoerced)
	assert.True(t, json.Valid(data))
}

func TestEncode_Deterministic(t *testing.T) {
	first, _, err := Encode(twoStationCache(), Meta{DataSource: "noaa"})
	require.NoError(t, err)
	for range 5 {
		again, _, err := Encode(twoStationCache(), Meta{DataSource: "noaa"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncode_NonFiniteBecomesNull(t *testing.T) {
	cache := twoStationCache()
	cache.Frames[1].Amplitudes = []float64{math.NaN(), math.Inf(1)}
	cache.Frames[2].Amplitudes[0] = math.Inf(-1)

	data, stats, err := Encode(cache, Meta{})
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	assert.Equal(t, 3, stats.NonFiniteCoerced)
	assert.Contains(t, string(data), `"wave_values":[null,null]`)
	assert.Contains(t, string(data), `"wave_values":[null,3]`)
	assert.Contains(t, string(data), `"nonfinite_coerced":3`)
	assert.NotContains(t, string(data), "NaN")
	assert.NotContains(t, string(data), "Inf")

	a, err := Decode(data)
	require.NoError(t, err)
	f, ok := a.Frame(1)
	require.True(t, ok)
	assert.Nil(t, f.WaveValues[0])
	assert.Nil(t, f.WaveValues[1])
	assert.NoError(t, Validate(a))
}

func TestEncode_FramesInNumericOrder(t *testing.T) {
	cache := domain.FrameCache{
		StationOrder:      []string{"A"},
		StationDistanceKm: map[string]float64{"A": 1},
		Stations:          stationsFor("A"),
		GeneratedAt:       generatedAt,
	}
	for i := range 12 {
		cache.Frames = append(cache.Frames, domain.FrameRecord{
			Index:      i,
			Timestamp:  baseTime.Add(time.Duration(i) * time.Minute),
			Distances:  []float64{1},
			Amplitudes: []float64{0},
		})
	}

	data, _, err := Encode(cache, Meta{})
	require.NoError(t, err)

	s := string(data)
	for i := 1; i < 12; i++ {
		assert.Less(t, strings.Index(s, fmt.Sprintf(`"%d":{`, i-1)), strings.Index(s, fmt.Sprintf(`"%d":{`, i)))
	}
}

func TestEncode_FloatFormatting(t *testing.T) {
	cache := domain.FrameCache{
		StationOrder:      []string{"A", "B", "C", "D"},
		StationDistanceKm: map[string]float64{"A": 0.1, "B": 1234.5678, "C": 2e21, "D": 3e-7},
		Stations:          stationsFor("A", "B", "C", "D"),
		GeneratedAt:       generatedAt,
		Frames: []domain.FrameRecord{{
			Timestamp:  baseTime,
			Distances:  []float64{0.1, 1234.5678, 2e21, 3e-7},
			Amplitudes: []float64{-0.25, 0, 1e-7, 42},
		}},
	}

	data, _, err := Encode(cache, Meta{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"x_values":[0.1,1234.5678,2e+21,3e-7]`)
	assert.Contains(t, string(data), `"wave_values":[-0.25,0,1e-7,42]`)
}

func TestEncode_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.FrameCache)
	}{
		{"index gap", func(c *domain.FrameCache) { c.Frames[1].Index = 5 }},
		{"short amplitudes", func(c *domain.FrameCache) { c.Frames[0].Amplitudes = []float64{1} }},
		{"missing distance", func(c *domain.FrameCache) { delete(c.StationDistanceKm, "A") }},
		{"missing station record", func(c *domain.FrameCache) { delete(c.Stations, "B") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := twoStationCache()
			tt.mutate(&cache)
			_, _, err := Encode(cache, Meta{})
			assert.ErrorIs(t, err, domain.ErrSerializationFailure)
		})
	}
}

func TestEncode_EscapesNames(t *testing.T) {
	cache := twoStationCache()
	cache.StationOrder = []string{`B "north"`, "A"}
	cache.StationDistanceKm = map[string]float64{`B "north"`: 5, "A": 10}
	cache.Stations = stationsFor(`B "north"`, "A")

	data, _, err := Encode(cache, Meta{})
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	a, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{`B "north"`, "A"}, a.Metadata.StationOrder)
}

func TestEncode_SubSecondTimestampsStayDistinct(t *testing.T) {
	cache := twoStationCache()
	cache.Frames = cache.Frames[:2]
	cache.Frames[0].Timestamp = time.Date(2025, 7, 30, 0, 0, 0, 200_000_000, time.UTC)
	cache.Frames[1].Timestamp = time.Date(2025, 7, 30, 0, 0, 0, 700_000_000, time.UTC)

	data, _, err := Encode(cache, Meta{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2025-07-30T00:00:00.2Z"`)
	assert.Contains(t, string(data), `"timestamp":"2025-07-30T00:00:00.7Z"`)

	a, err := Decode(data)
	require.NoError(t, err)
	assert.NoError(t, Validate(a))
}

func TestEncode_StationsFollowStationOrder(t *testing.T) {
	data, _, err := Encode(twoStationCache(), Meta{})
	require.NoError(t, err)

	s := string(data)
	assert.Less(t, strings.Index(s, `"B":{"id"`), strings.Index(s, `"A":{"id"`))
	assert.Contains(t, s, `"description":""`)

	a, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Station{ID: "1612341", Lat: 20.5, Lon: -157.75}, a.Metadata.Stations["A"])
}
