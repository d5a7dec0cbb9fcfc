package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache() domain.FrameCache {
	return domain.FrameCache{
		StationOrder:      []string{"Honolulu", "Hilo"},
		StationDistanceKm: map[string]float64{"Honolulu": 5471.3, "Hilo": 5750.9},
		Frames:            make([]domain.FrameRecord, 3),
		GeneratedAt:       time.Date(2025, 8, 1, 12, 0, 0, 0, time.FixedZone("HST", -10*3600)),
	}
}

func testReport() domain.ExportReport {
	return domain.ExportReport{
		Locations:        []string{"data/frame_data_client.json", "s3://wave-cache/frame_data_client.json"},
		Bytes:            2048,
		SHA256:           "9f86d081884c7d65",
		NonFiniteCoerced: 1,
	}
}

func TestNewEvent(t *testing.T) {
	ev := newEvent(testCache(), testReport())

	assert.Equal(t, EventType, ev.Type)
	assert.Equal(t, time.Date(2025, 8, 1, 22, 0, 0, 0, time.UTC), ev.GeneratedAt)
	assert.Equal(t, 3, ev.FrameCount)
	assert.Equal(t, []string{"Honolulu", "Hilo"}, ev.StationOrder)
	assert.Equal(t, 2048, ev.Bytes)
	assert.Equal(t, 1, ev.NonFiniteCoerced)
	assert.Len(t, ev.Locations, 2)
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(newEvent(testCache(), testReport()))
	require.NoError(t, err)

	assert.Equal(t, []byte("9f86d081884c7d65"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventType), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-08-01T22:00:00Z"), msg.Headers[1].Value)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 3, decoded.FrameCount)
	assert.Equal(t, "9f86d081884c7d65", decoded.SHA256)
	assert.Contains(t, string(msg.Value), `"type":"frame_cache.generated"`)
}
