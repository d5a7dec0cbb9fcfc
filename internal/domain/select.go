package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Selection is the authoritative left-to-right station order. Every frame's
// distance and amplitude arrays are indexed by it.
type Selection struct {
	Stations    []StationRecord
	DistancesKm []float64

	// Excluded lists configured exclusions that matched a catalog station.
	Excluded []string
	// Absent lists non-excluded stations missing from the matrix.
	Absent []string
}

// Len returns the number of active stations.
func (s Selection) Len() int { return len(s.Stations) }

// SelectStations drops excluded stations and stations without a matrix
// column, then orders the rest by great-circle distance from ref. Ties keep
// catalog order. Exclusions match a station's ID or display name.
func SelectStations(m ResampledMatrix, cat StationCatalog, ref ReferencePoint, excluded []string) (Selection, error) {
	exclude := NewExclusionSet(excluded)

	type candidate struct {
		station  StationRecord
		distance float64
	}

	var (
		sel        Selection
		candidates []candidate
	)
	for _, s := range cat.Stations() {
		if exclude.Matches(s) {
			sel.Excluded = append(sel.Excluded, s.DisplayName)
			continue
		}
		if !m.Has(s.ID) {
			sel.Absent = append(sel.Absent, s.DisplayName)
			continue
		}
		candidates = append(candidates, candidate{station: s, distance: ref.DistanceKm(s)})
	}

	if len(candidates) == 0 {
		return sel, fmt.Errorf("%w: %d excluded, %d without data", ErrNoStations, len(sel.Excluded), len(sel.Absent))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	sel.Stations = make([]StationRecord, len(candidates))
	sel.DistancesKm = make([]float64, len(candidates))
	for i, c := range candidates {
		sel.Stations[i] = c.station
		sel.DistancesKm[i] = c.distance
	}
	return sel, nil
}

// ExclusionSet holds station IDs and display names to leave out of a run.
type ExclusionSet map[string]struct{}

// NewExclusionSet builds a set from entries, ignoring blanks.
func NewExclusionSet(entries []string) ExclusionSet {
	set := make(ExclusionSet, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

// Matches reports whether s is excluded by ID or display name.
func (e ExclusionSet) Matches(s StationRecord) bool {
	if _, ok := e[s.ID]; ok {
		return true
	}
	_, ok := e[s.DisplayName]
	return ok
}
