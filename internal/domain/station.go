package domain

import (
	"fmt"
	"strings"
)

// StationRecord identifies one tide gauge.
type StationRecord struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"name"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
}

// ReferencePoint is the origin used to rank stations by distance, typically an
// earthquake epicenter.
type ReferencePoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// DistanceKm returns the great-circle distance from the reference point to s.
func (r ReferencePoint) DistanceKm(s StationRecord) float64 {
	return HaversineKm(r.Latitude, r.Longitude, s.Latitude, s.Longitude)
}

// StationCatalog is an immutable, ordered set of stations keyed by ID.
// Catalog order is the tie-breaker for every ordering decision downstream.
type StationCatalog struct {
	stations []StationRecord
	index    map[string]int
}

// NewStationCatalog validates stations and builds a catalog. IDs and display
// names must be unique and non-empty, and coordinates must be in range.
func NewStationCatalog(stations []StationRecord) (StationCatalog, error) {
	if len(stations) == 0 {
		return StationCatalog{}, fmt.Errorf("station catalog is empty")
	}

	cat := StationCatalog{
		stations: make([]StationRecord, 0, len(stations)),
		index:    make(map[string]int, len(stations)),
	}
	names := make(map[string]string, len(stations))

	for i, s := range stations {
		s.ID = strings.TrimSpace(s.ID)
		s.DisplayName = strings.TrimSpace(s.DisplayName)
		if s.ID == "" {
			return StationCatalog{}, fmt.Errorf("station %d: id is required", i)
		}
		if s.DisplayName == "" {
			return StationCatalog{}, fmt.Errorf("station %s: name is required", s.ID)
		}
		if s.Latitude < -90 || s.Latitude > 90 {
			return StationCatalog{}, fmt.Errorf("station %s: latitude %v out of range", s.ID, s.Latitude)
		}
		if s.Longitude < -180 || s.Longitude > 180 {
			return StationCatalog{}, fmt.Errorf("station %s: longitude %v out of range", s.ID, s.Longitude)
		}
		if _, dup := cat.index[s.ID]; dup {
			return StationCatalog{}, fmt.Errorf("station %s: duplicate id", s.ID)
		}
		if other, dup := names[s.DisplayName]; dup {
			return StationCatalog{}, fmt.Errorf("station %s: name %q already used by %s", s.ID, s.DisplayName, other)
		}
		names[s.DisplayName] = s.ID
		cat.index[s.ID] = len(cat.stations)
		cat.stations = append(cat.stations, s)
	}

	return cat, nil
}

// Stations returns a copy of the catalog in catalog order.
func (c StationCatalog) Stations() []StationRecord {
	out := make([]StationRecord, len(c.stations))
	copy(out, c.stations)
	return out
}

// IDs returns station IDs in catalog order.
func (c StationCatalog) IDs() []string {
	ids := make([]string, len(c.stations))
	for i, s := range c.stations {
		ids[i] = s.ID
	}
	return ids
}

// Lookup returns the station with the given ID.
func (c StationCatalog) Lookup(id string) (StationRecord, bool) {
	i, ok := c.index[id]
	if !ok {
		return StationRecord{}, false
	}
	return c.stations[i], true
}

// Position returns the catalog index of id, or -1.
func (c StationCatalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of stations.
func (c StationCatalog) Len() int { return len(c.stations) }
