package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
)

// Exporter encodes a frame cache, checks the result against the schema and
// writes it to every sink in order.
type Exporter struct {
	meta   Meta
	sinks  []Sink
	logger *slog.Logger
}

// NewExporter creates an exporter writing to sinks.
func NewExporter(meta Meta, logger *slog.Logger, sinks ...Sink) *Exporter {
	return &Exporter{meta: meta, sinks: sinks, logger: logger}
}

// Load encodes cache and writes it. Nothing is written unless the encoded
// artifact validates. A sink failure stops the export; sinks already written
// hold the complete new artifact.
func (e *Exporter) Load(ctx context.Context, cache domain.FrameCache) (domain.ExportReport, error) {
	data, stats, err := Encode(cache, e.meta)
	if err != nil {
		return domain.ExportReport{}, err
	}
	if stats.NonFiniteCoerced > 0 {
		e.logger.Warn("non-finite values written as null", "count", stats.NonFiniteCoerced)
	}

	a, err := Decode(data)
	if err == nil {
		err = Validate(a)
	}
	if err != nil {
		return domain.ExportReport{}, fmt.Errorf("%w: %w", domain.ErrSerializationFailure, err)
	}

	sum := sha256.Sum256(data)
	report := domain.ExportReport{
		Bytes:            len(data),
		SHA256:           hex.EncodeToString(sum[:]),
		NonFiniteCoerced: stats.NonFiniteCoerced,
	}
	for _, s := range e.sinks {
		if err := s.Write(ctx, data); err != nil {
			return report, fmt.Errorf("%w: write %s: %w", domain.ErrSerializationFailure, s.Location(), err)
		}
		report.Locations = append(report.Locations, s.Location())
		e.logger.Info("artifact written", "location", s.Location(), "bytes", len(data))
	}
	return report, nil
}
