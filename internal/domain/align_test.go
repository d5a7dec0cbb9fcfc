package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStationID = "1612340"

func ts(minute int) time.Time {
	return time.Date(2025, time.July, 29, 23, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
}

func coops(minute int) string {
	return ts(minute).Format("2006-01-02 15:04")
}

func TestParseTimestamp(t *testing.T) {
	t.Run("coops layout", func(t *testing.T) {
		got, err := ParseTimestamp("2025-07-29 23:25")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 7, 29, 23, 25, 0, 0, time.UTC), got)
	})

	t.Run("rfc3339 with offset is normalized to UTC", func(t *testing.T) {
		got, err := ParseTimestamp("2025-07-29T13:25:00-10:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 7, 29, 23, 25, 0, 0, time.UTC), got)
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseTimestamp("yesterday")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedTimestamp))
	})
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(" 0.412 ")
	require.NoError(t, err)
	assert.InDelta(t, 0.412, v, 1e-12)

	for _, raw := range []string{"", "   ", "abc", "NaN", "Inf", "-Inf"} {
		_, err := ParseValue(raw)
		assert.ErrorIs(t, err, ErrNonNumericValue, "value %q", raw)
	}
}

func TestAlign_InnerJoinCardinality(t *testing.T) {
	observed := []RawSample{
		{Timestamp: coops(0), Value: "1.0"},
		{Timestamp: coops(1), Value: "1.5"},
		{Timestamp: coops(2), Value: "2.0"},
		{Timestamp: coops(4), Value: "3.0"},
	}
	predicted := []RawSample{
		{Timestamp: coops(1), Value: "0.5"},
		{Timestamp: coops(2), Value: "0.5"},
		{Timestamp: coops(3), Value: "0.5"},
		{Timestamp: coops(4), Value: "1.0"},
	}

	series, stats := Align(testStationID, observed, predicted)

	require.Equal(t, 3, series.Len())
	assert.Equal(t, testStationID, series.StationID)
	assert.Equal(t, ts(1), series.Samples[0].Timestamp)
	assert.InDelta(t, 1.0, series.Samples[0].Delta, 1e-12)
	assert.InDelta(t, 1.5, series.Samples[1].Delta, 1e-12)
	assert.InDelta(t, 2.0, series.Samples[2].Delta, 1e-12)
	assert.Equal(t, 2, stats.Unmatched)
	assert.Equal(t, 2, stats.Dropped())
}

func TestAlign_UnorderedInputIsSorted(t *testing.T) {
	observed := []RawSample{
		{Timestamp: coops(2), Value: "2"},
		{Timestamp: coops(0), Value: "0"},
		{Timestamp: coops(1), Value: "1"},
	}
	predicted := []RawSample{
		{Timestamp: coops(1), Value: "0"},
		{Timestamp: coops(2), Value: "0"},
		{Timestamp: coops(0), Value: "0"},
	}

	series, _ := Align(testStationID, observed, predicted)

	require.Equal(t, 3, series.Len())
	for i := 1; i < series.Len(); i++ {
		assert.True(t, series.Samples[i-1].Timestamp.Before(series.Samples[i].Timestamp))
	}
	assert.InDelta(t, 2.0, series.Samples[2].Delta, 1e-12)
}

func TestAlign_DuplicateKeepsFirstOccurrence(t *testing.T) {
	observed := []RawSample{
		{Timestamp: coops(0), Value: "5"},
		{Timestamp: coops(0), Value: "9"},
	}
	predicted := []RawSample{
		{Timestamp: coops(0), Value: "1"},
		{Timestamp: coops(0), Value: "2"},
	}

	series, stats := Align(testStationID, observed, predicted)

	require.Equal(t, 1, series.Len())
	assert.InDelta(t, 5.0, series.Samples[0].Observed, 1e-12)
	assert.InDelta(t, 1.0, series.Samples[0].Predicted, 1e-12)
	assert.InDelta(t, 4.0, series.Samples[0].Delta, 1e-12)
	assert.Equal(t, 2, stats.DuplicateTimestamps)
}

func TestAlign_MalformedSamplesAreDroppedIndividually(t *testing.T) {
	observed := []RawSample{
		{Timestamp: "not-a-time", Value: "1"},
		{Timestamp: coops(1), Value: ""},
		{Timestamp: coops(2), Value: "x"},
		{Timestamp: coops(3), Value: "3"},
	}
	predicted := []RawSample{
		{Timestamp: coops(1), Value: "0"},
		{Timestamp: coops(2), Value: "0"},
		{Timestamp: coops(3), Value: "1"},
	}

	series, stats := Align(testStationID, observed, predicted)

	require.Equal(t, 1, series.Len())
	assert.Equal(t, ts(3), series.Samples[0].Timestamp)
	assert.Equal(t, 1, stats.MalformedTimestamps)
	assert.Equal(t, 2, stats.NonNumericValues)
	assert.Equal(t, 2, stats.Unmatched)
}

func TestAlign_NonFiniteDeltaIsDropped(t *testing.T) {
	observed := []RawSample{{Timestamp: coops(0), Value: "1e308"}, {Timestamp: coops(1), Value: "1"}}
	predicted := []RawSample{{Timestamp: coops(0), Value: "-1e308"}, {Timestamp: coops(1), Value: "0"}}

	series, stats := Align(testStationID, observed, predicted)

	require.Equal(t, 1, series.Len())
	assert.Equal(t, 1, stats.NonFiniteDeltas)
	assert.False(t, math.IsInf(series.Samples[0].Delta, 0))
}

func TestAlign_NoOverlap(t *testing.T) {
	t.Run("disjoint timestamps", func(t *testing.T) {
		series, stats := Align(testStationID,
			[]RawSample{{Timestamp: coops(0), Value: "1"}},
			[]RawSample{{Timestamp: coops(1), Value: "1"}},
		)
		assert.True(t, series.Empty())
		assert.Equal(t, 2, stats.Unmatched)
	})

	t.Run("empty inputs", func(t *testing.T) {
		series, stats := Align(testStationID, nil, nil)
		assert.True(t, series.Empty())
		assert.Zero(t, stats.Dropped())
	})

	t.Run("second offsets do not match", func(t *testing.T) {
		series, _ := Align(testStationID,
			[]RawSample{{Timestamp: "2025-07-29T23:25:06Z", Value: "1"}},
			[]RawSample{{Timestamp: "2025-07-29 23:25", Value: "1"}},
		)
		assert.True(t, series.Empty())
	})
}
