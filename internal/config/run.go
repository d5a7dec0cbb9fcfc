package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default_run.yaml
var defaultRunYAML []byte

// Run is the validated, immutable description of one frame-cache run. It is
// passed by value into every stage.
type Run struct {
	Description string
	Catalog     domain.StationCatalog
	Reference   domain.ReferencePoint
	Window      domain.Window
	Excluded    []string
	GridStep    time.Duration
}

// runFile mirrors the YAML layout of a run configuration.
type runFile struct {
	Description string `yaml:"description"`
	Stations    []struct {
		ID   string  `yaml:"id"`
		Name string  `yaml:"name"`
		Lat  float64 `yaml:"lat"`
		Lon  float64 `yaml:"lon"`
	} `yaml:"stations"`
	ReferencePoint struct {
		Lat float64 `yaml:"lat"`
		Lon float64 `yaml:"lon"`
	} `yaml:"reference_point"`
	Window struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"window"`
	ExcludedStations []string `yaml:"excluded_stations"`
	GridStepHint     string   `yaml:"grid_step_hint"`
}

// LoadRun reads a run configuration from path. An empty path selects the
// embedded default run.
func LoadRun(path string) (Run, error) {
	if path == "" {
		return ParseRun(defaultRunYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("read run config: %w", err)
	}
	run, err := ParseRun(data)
	if err != nil {
		return Run{}, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

// ParseRun decodes and validates a YAML run configuration.
func ParseRun(data []byte) (Run, error) {
	var f runFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Run{}, fmt.Errorf("parse run config: %w", err)
	}

	records := make([]domain.StationRecord, len(f.Stations))
	for i, s := range f.Stations {
		records[i] = domain.StationRecord{ID: s.ID, DisplayName: s.Name, Latitude: s.Lat, Longitude: s.Lon}
	}
	catalog, err := domain.NewStationCatalog(records)
	if err != nil {
		return Run{}, fmt.Errorf("invalid stations: %w", err)
	}

	ref := domain.ReferencePoint{Latitude: f.ReferencePoint.Lat, Longitude: f.ReferencePoint.Lon}
	if ref.Latitude < -90 || ref.Latitude > 90 || ref.Longitude < -180 || ref.Longitude > 180 {
		return Run{}, fmt.Errorf("invalid reference_point: (%v, %v) out of range", ref.Latitude, ref.Longitude)
	}

	start, err := parseWindowBound("start", f.Window.Start)
	if err != nil {
		return Run{}, err
	}
	end, err := parseWindowBound("end", f.Window.End)
	if err != nil {
		return Run{}, err
	}
	window := domain.Window{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid window: %w", err)
	}

	var step time.Duration
	if s := strings.TrimSpace(f.GridStepHint); s != "" {
		step, err = time.ParseDuration(s)
		if err != nil || step < 0 {
			return Run{}, fmt.Errorf("invalid grid_step_hint %q", s)
		}
		if step > 0 {
			if _, ok := domain.GridPoints(window.End.Sub(window.Start), step); !ok {
				return Run{}, fmt.Errorf("invalid grid_step_hint %q: want at least %s and at most %d points over the window",
					s, domain.MinGridStep, domain.MaxGridPoints)
			}
		}
	}

	excluded := make([]string, 0, len(f.ExcludedStations))
	for _, e := range f.ExcludedStations {
		if e = strings.TrimSpace(e); e != "" {
			excluded = append(excluded, e)
		}
	}

	return Run{
		Description: strings.TrimSpace(f.Description),
		Catalog:     catalog,
		Reference:   ref,
		Window:      window,
		Excluded:    excluded,
		GridStep:    step,
	}, nil
}

func parseWindowBound(name, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid window.%s %q: want RFC 3339", name, s)
	}
	return t.UTC(), nil
}

// IsExcluded reports whether s matches a configured exclusion by ID or name.
func (r Run) IsExcluded(s domain.StationRecord) bool {
	return domain.NewExclusionSet(r.Excluded).Matches(s)
}
