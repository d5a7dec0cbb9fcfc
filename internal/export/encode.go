// Package export serializes a frame cache into the versioned interchange
// artifact consumed by the renderer, and writes it to one or more sinks.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
)

// SchemaVersion identifies the artifact layout.
const SchemaVersion = "1"

// Meta carries artifact fields that are not part of the frame cache itself.
type Meta struct {
	DataSource  string
	Description string
}

// EncodeStats reports lossy conversions made while encoding.
type EncodeStats struct {
	// NonFiniteCoerced counts NaN and ±Inf values written as null.
	NonFiniteCoerced int
}

// Encode renders cache as compact JSON. Frames are keyed by their decimal
// index and written in index order; metadata distances follow station order.
// Non-finite numbers become null and are counted, never written as a token a
// decoder would read back as a different number. The output depends only on
// its inputs.
func Encode(cache domain.FrameCache, meta Meta) ([]byte, EncodeStats, error) {
	var (
		stats  EncodeStats
		frames bytes.Buffer
	)

	frames.WriteByte('{')
	for i, f := range cache.Frames {
		if f.Index != i {
			return nil, stats, fmt.Errorf("%w: frame %d has index %d", domain.ErrSerializationFailure, i, f.Index)
		}
		if len(f.Distances) != len(cache.StationOrder) || len(f.Amplitudes) != len(cache.StationOrder) {
			return nil, stats, fmt.Errorf("%w: frame %d has %d distances and %d amplitudes for %d stations",
				domain.ErrSerializationFailure, i, len(f.Distances), len(f.Amplitudes), len(cache.StationOrder))
		}
		if i > 0 {
			frames.WriteByte(',')
		}
		frames.WriteByte('"')
		frames.WriteString(strconv.Itoa(i))
		frames.WriteString(`":{"timestamp":`)
		writeString(&frames, formatTime(f.Timestamp))
		frames.WriteString(`,"x_values":`)
		writeFloats(&frames, f.Distances, &stats)
		frames.WriteString(`,"wave_values":`)
		writeFloats(&frames, f.Amplitudes, &stats)
		frames.WriteByte('}')
	}
	frames.WriteByte('}')

	var out bytes.Buffer
	out.Grow(frames.Len() + 512)
	out.WriteString(`{"metadata":{"schema_version":`)
	writeString(&out, SchemaVersion)

	out.WriteString(`,"station_order":[`)
	for i, name := range cache.StationOrder {
		if i > 0 {
			out.WriteByte(',')
		}
		writeString(&out, name)
	}

	out.WriteString(`],"station_distance_km":{`)
	for i, name := range cache.StationOrder {
		d, ok := cache.StationDistanceKm[name]
		if !ok {
			return nil, stats, fmt.Errorf("%w: no distance for station %q", domain.ErrSerializationFailure, name)
		}
		if i > 0 {
			out.WriteByte(',')
		}
		writeString(&out, name)
		out.WriteByte(':')
		writeFloat(&out, d, &stats)
	}

	out.WriteString(`},"stations":{`)
	for i, name := range cache.StationOrder {
		st, ok := cache.Stations[name]
		if !ok {
			return nil, stats, fmt.Errorf("%w: no station record for %q", domain.ErrSerializationFailure, name)
		}
		if i > 0 {
			out.WriteByte(',')
		}
		writeString(&out, name)
		out.WriteString(`:{"id":`)
		writeString(&out, st.ID)
		out.WriteString(`,"lat":`)
		writeFloat(&out, st.Latitude, &stats)
		out.WriteString(`,"lon":`)
		writeFloat(&out, st.Longitude, &stats)
		out.WriteByte('}')
	}

	out.WriteString(`},"frame_count":`)
	out.WriteString(strconv.Itoa(len(cache.Frames)))
	out.WriteString(`,"generated_at":`)
	writeString(&out, formatTime(cache.GeneratedAt))
	out.WriteString(`,"data_source":`)
	writeString(&out, meta.DataSource)
	out.WriteString(`,"description":`)
	writeString(&out, meta.Description)
	out.WriteString(`,"nonfinite_coerced":`)
	out.WriteString(strconv.Itoa(stats.NonFiniteCoerced))
	out.WriteString(`},"frames":`)
	out.Write(frames.Bytes())
	out.WriteByte('}')

	return out.Bytes(), stats, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func writeString(buf *bytes.Buffer, s string) {
	// Marshal of a string cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func writeFloats(buf *bytes.Buffer, vs []float64, stats *EncodeStats) {
	buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeFloat(buf, v, stats)
	}
	buf.WriteByte(']')
}

// writeFloat formats v the way encoding/json does, or null if v is not finite.
func writeFloat(buf *bytes.Buffer, v float64, stats *EncodeStats) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		stats.NonFiniteCoerced++
		buf.WriteString("null")
		return
	}
	format := byte('f')
	if abs := math.Abs(v); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b := strconv.AppendFloat(buf.AvailableBuffer(), v, format, -1, 64)
	if format == 'e' {
		// e-07 -> e-7
		if n := len(b); n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	buf.Write(b)
}
