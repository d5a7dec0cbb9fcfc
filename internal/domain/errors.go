package domain

import "errors"

// Recoverable failures. These are counted and logged; the run continues.
var (
	// ErrFetchFailure marks a transport, timeout or HTTP failure for one
	// station/product pair.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrMalformedTimestamp marks a raw sample whose timestamp cannot be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrNonNumericValue marks a raw sample whose value is missing, non-numeric
	// or non-finite.
	ErrNonNumericValue = errors.New("non-numeric value")

	// ErrNoOverlap marks a station whose observed and predicted series share no
	// timestamp.
	ErrNoOverlap = errors.New("no overlap between observed and predicted series")

	// ErrEmptyTimeline marks a canonical timeline with fewer than two points.
	ErrEmptyTimeline = errors.New("timeline has fewer than two points")
)

// Fatal failures. The run aborts without writing an artifact.
var (
	// ErrInvariantViolation indicates a logic defect, e.g. a non-finite value
	// reaching the frame builder or out-of-order frame timestamps.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrSerializationFailure indicates the artifact could not be encoded or
	// written.
	ErrSerializationFailure = errors.New("serialization failure")

	// ErrNoStations indicates that no station survived to the frame builder.
	ErrNoStations = errors.New("no active stations")
)
