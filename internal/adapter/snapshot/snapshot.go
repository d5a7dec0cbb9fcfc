// Package snapshot records raw remote fetches to a versioned JSON file and
// replays them as a series source, so a run can be repeated offline.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/couchcryptid/wave-frame-cache/internal/export"
)

// SchemaVersion identifies the snapshot layout.
const SchemaVersion = "1"

// File is a recorded set of raw series keyed by station ID and product.
type File struct {
	SchemaVersion string                                          `json:"schema_version"`
	RecordedAt    time.Time                                       `json:"recorded_at"`
	Window        *WindowJSON                                     `json:"window,omitempty"`
	Samples       map[string]map[domain.Product][]domain.RawSample `json:"samples"`
}

// WindowJSON is the window the samples were fetched for.
type WindowJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a snapshot of samples taken for w at recordedAt.
func New(samples map[string]map[domain.Product][]domain.RawSample, w domain.Window, recordedAt time.Time) *File {
	return &File{
		SchemaVersion: SchemaVersion,
		RecordedAt:    recordedAt.UTC(),
		Window:        &WindowJSON{Start: w.Start.UTC(), End: w.End.UTC()},
		Samples:       samples,
	}
}

// Read loads and checks a snapshot file.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if f.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("snapshot %s: schema_version %q, want %q", path, f.SchemaVersion, SchemaVersion)
	}
	if f.Samples == nil {
		f.Samples = make(map[string]map[domain.Product][]domain.RawSample)
	}
	return &f, nil
}

// Write stores f at path atomically.
func Write(path string, f *File) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return export.WriteFileAtomic(path, data, 0o644)
}

// Source replays a snapshot. It implements pipeline.SeriesSource.
type Source struct {
	file *File
}

// NewSource creates a source over f. f must not be modified afterwards.
func NewSource(f *File) *Source {
	return &Source{file: f}
}

// Fetch returns a copy of the recorded series, or an empty slice if the pair
// was never recorded. The window is not applied; the resampler does that.
func (s *Source) Fetch(ctx context.Context, stationID string, product domain.Product, _ domain.Window) ([]domain.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.RawSample(nil), s.file.Samples[stationID][product]...), nil
}

// Covers reports whether the recorded window contains w. Snapshots without a
// recorded window are assumed to cover any window.
func (f *File) Covers(w domain.Window) bool {
	if f.Window == nil {
		return true
	}
	return !w.Start.Before(f.Window.Start) && !w.End.After(f.Window.End)
}
