package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	name   string
	writes [][]byte
	err    error
}

func (s *memorySink) Location() string { return s.name }

func (s *memorySink) Write(_ context.Context, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, append([]byte(nil), data...))
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExporter_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.json")
	mem := &memorySink{name: "memory"}
	e := NewExporter(Meta{DataSource: "test"}, discardLogger(), NewFileSink(path), mem)

	report, err := e.Load(context.Background(), twoStationCache())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)

	assert.Equal(t, []string{path, "memory"}, report.Locations)
	assert.Equal(t, len(data), report.Bytes)
	assert.Equal(t, hex.EncodeToString(sum[:]), report.SHA256)
	require.Len(t, mem.writes, 1)
	assert.Equal(t, data, mem.writes[0])

	a, err := Decode(data)
	require.NoError(t, err)
	assert.NoError(t, Validate(a))
}

func TestExporter_ReportsCoercedValues(t *testing.T) {
	cache := twoStationCache()
	cache.Frames[0].Amplitudes[1] = math.NaN()
	mem := &memorySink{name: "memory"}

	report, err := NewExporter(Meta{}, discardLogger(), mem).Load(context.Background(), cache)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NonFiniteCoerced)
}

func TestExporter_InvalidCacheWritesNothing(t *testing.T) {
	cache := twoStationCache()
	cache.Frames[2].Timestamp = cache.Frames[0].Timestamp
	mem := &memorySink{name: "memory"}

	_, err := NewExporter(Meta{}, discardLogger(), mem).Load(context.Background(), cache)
	require.ErrorIs(t, err, domain.ErrSerializationFailure)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
	assert.Empty(t, mem.writes)
}

func TestExporter_SinkFailure(t *testing.T) {
	first := &memorySink{name: "first", err: errors.New("permission denied")}
	second := &memorySink{name: "second"}

	_, err := NewExporter(Meta{}, discardLogger(), first, second).Load(context.Background(), twoStationCache())
	require.ErrorIs(t, err, domain.ErrSerializationFailure)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "permission denied")
	assert.Empty(t, second.writes)
}
