// Command validate checks an exported frame cache artifact: the schema
// invariants, then consistency with the run configuration it was built from.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -artifact data/frame_data_client.json \
//	  -run configs/kamchatka.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/config"
	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/couchcryptid/wave-frame-cache/internal/export"
)

// distanceToleranceKm bounds the difference between a recorded distance and
// one recomputed from the catalog.
const distanceToleranceKm = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	artifactPath := flag.String("artifact", "data/frame_data_client.json", "path to the frame cache artifact")
	runPath := flag.String("run", "", "run configuration YAML (default: embedded run)")
	flag.Parse()

	os.Exit(run(*artifactPath, *runPath))
}

func run(artifactPath, runPath string) int {
	fmt.Println("=== Frame Cache Validation ===")
	fmt.Println()

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read artifact: %v\n", err)
		return 1
	}
	a, err := export.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	runCfg, err := config.LoadRun(runPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load run config: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(a),
		validateStations(a, runCfg),
		validateWindow(a, runCfg.Window),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Artifact: %d bytes, %d stations, %d frames, %d nulls coerced\n",
		len(data), len(a.Metadata.StationOrder), len(a.Frames), a.Metadata.NonFiniteCoerced)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateSchema(a export.Artifact) *phase {
	p := &phase{name: "Schema invariants"}
	for _, msg := range problems(export.Validate(a)) {
		p.errorf("%s", msg)
	}
	return p
}

// problems flattens the joined error returned by export.Validate.
func problems(err error) []string {
	if err == nil {
		return nil
	}
	multi, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range multi.Unwrap() {
		if errors.Is(e, export.ErrInvalidArtifact) {
			continue
		}
		out = append(out, problems(e)...)
	}
	return out
}

func validateStations(a export.Artifact, runCfg config.Run) *phase {
	p := &phase{name: "Stations against run configuration"}

	byName := make(map[string]domain.StationRecord, runCfg.Catalog.Len())
	for _, s := range runCfg.Catalog.Stations() {
		byName[s.DisplayName] = s
	}

	for _, name := range a.Metadata.StationOrder {
		s, ok := byName[name]
		if !ok {
			p.errorf("station %q is not in the catalog", name)
			continue
		}
		if runCfg.IsExcluded(s) {
			p.errorf("station %q (%s) is excluded but present", name, s.ID)
		}
		got, ok := a.Metadata.StationDistanceKm[name]
		if !ok {
			continue
		}
		if want := runCfg.Reference.DistanceKm(s); math.Abs(got-want) > distanceToleranceKm {
			p.errorf("station %q distance %.6f km, recomputed %.6f km", name, got, want)
		}
	}
	return p
}

func validateWindow(a export.Artifact, w domain.Window) *phase {
	p := &phase{name: "Timeline within run window"}
	for i := range a.Metadata.FrameCount {
		f, ok := a.Frame(i)
		if !ok {
			continue
		}
		if !w.Contains(f.Timestamp) {
			p.errorf("frame %d timestamp %s outside [%s, %s]", i,
				f.Timestamp.UTC().Format(time.RFC3339), w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
		}
	}
	return p
}
