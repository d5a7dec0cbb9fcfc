package domain

import (
	"fmt"
	"time"
)

// Product names a CO-OPS data product.
type Product string

const (
	ProductObserved  Product = "one_minute_water_level"
	ProductPredicted Product = "predictions"
)

// Products lists the products fetched for every station, observed first.
var Products = [...]Product{ProductObserved, ProductPredicted}

// Window is an inclusive analysis interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate reports whether the window is well formed.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window start and end are required")
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("window start %s is not before end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t lies within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// RawSample is one instrument reading as delivered by the remote API. Both
// fields are unparsed; Value is empty when the reading is missing.
type RawSample struct {
	Timestamp string `json:"t"`
	Value     string `json:"v"`
}

// AlignedSample pairs an observed and a predicted reading at the same
// timestamp.
type AlignedSample struct {
	Timestamp time.Time
	Observed  float64
	Predicted float64
	Delta     float64
}

// AnomalySeries is one station's aligned samples, strictly increasing by
// timestamp.
type AnomalySeries struct {
	StationID string
	Samples   []AlignedSample
}

// Len returns the number of aligned samples.
func (s AnomalySeries) Len() int { return len(s.Samples) }

// Empty reports whether the series carries no usable data.
func (s AnomalySeries) Empty() bool { return len(s.Samples) == 0 }
