// Command catalogcheck validates a station catalog file before it is deployed:
// it parses the file, checks category coverage, and dry-runs a resolve for
// every category using straight-line estimates.
//
// Usage:
//
//	go run ./cmd/catalogcheck -catalog data/stations.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/responder-dispatch-service/internal/adapter/straightline"
	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("catalog", "data/stations.json", "path to the station catalog JSON file")
	speed := flag.Float64("speed", 40, "straight-line speed in km/h for the dry-run resolve")
	flag.Parse()

	os.Exit(run(os.Stdout, *path, *speed))
}

func run(out io.Writer, path string, speedKmh float64) int {
	fmt.Fprintln(out, "=== Station Catalog Validation ===")
	fmt.Fprintln(out)

	parse := &phase{name: "Phase 1: Parse"}
	catalog, err := loadCatalog(path)
	if err != nil {
		parse.errorf("%v", err)
	}

	phases := []*phase{parse}
	if parse.passed() {
		phases = append(phases,
			checkCoverage(catalog),
			checkDryRun(catalog, straightline.NewProvider(speedKmh)),
		)
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	if catalog != nil {
		fmt.Fprintln(out)
		for _, c := range domain.Categories {
			fmt.Fprintf(out, "  %-10s %d stations\n", c, catalog.Len(c))
		}
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
		for _, w := range p.warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadCatalog(path string) (*domain.StationCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.LoadCatalog(f)
}

// checkCoverage requires every category to have stations and flags stations
// that share a coordinate, which usually means a copy-paste error.
func checkCoverage(catalog *domain.StationCatalog) *phase {
	p := &phase{name: "Phase 2: Coverage"}
	for _, c := range domain.Categories {
		stations := catalog.Stations(c)
		if len(stations) == 0 {
			p.errorf("%s: no stations", c)
			continue
		}
		seen := make(map[domain.Coordinate]string, len(stations))
		for _, s := range stations {
			if other, dup := seen[s.Location]; dup {
				p.warnf("%s: %q and %q share coordinates %.6f,%.6f", c, other, s.Name, s.Location.Lat, s.Location.Lng)
				continue
			}
			seen[s.Location] = s.Name
		}
	}
	return p
}

// checkDryRun resolves an incident at each category's station centroid and
// checks the decision is internally consistent.
func checkDryRun(catalog *domain.StationCatalog, provider domain.TravelTimeProvider) *phase {
	p := &phase{name: "Phase 3: Dry-run resolve"}
	ctx := context.Background()

	for _, c := range catalog.Categories() {
		stations := catalog.Stations(c)
		origin := centroid(stations)

		estimates, err := provider.Estimate(ctx, origin, stations)
		if err != nil {
			p.errorf("%s: estimate: %v", c, err)
			continue
		}
		decision, err := domain.Resolve(c, origin, estimates, catalog, nil)
		if err != nil {
			p.errorf("%s: resolve: %v", c, err)
			continue
		}
		loc, ok := catalog.Lookup(c, decision.ChosenStation)
		if !ok || loc != decision.StationLocation {
			p.errorf("%s: chosen station %q does not match catalog location", c, decision.ChosenStation)
		}
		if len(decision.Skipped) > 0 {
			p.errorf("%s: %d estimates could not be parsed: %v", c, len(decision.Skipped), decision.Skipped)
		}
	}
	return p
}

func centroid(stations []domain.Station) domain.Coordinate {
	var lat, lng float64
	for _, s := range stations {
		lat += s.Location.Lat
		lng += s.Location.Lng
	}
	n := float64(len(stations))
	return domain.Coordinate{Lat: lat / n, Lng: lng / n}
}
