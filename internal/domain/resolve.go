package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
)

// Resolver failures. Each is terminal for a single Resolve call.
var (
	ErrInvalidCategory     = errors.New("invalid category")
	ErrNoStationsAvailable = errors.New("no stations available")
	ErrNoParsableEstimate  = errors.New("no parsable travel estimate")
	ErrStationNotInCatalog = errors.New("station not in catalog")
)

// leadingMinutesRe matches the first run of ASCII digits in a provider
// duration, e.g. "12 mins" -> 12, "~8-10 min" -> 8.
var leadingMinutesRe = regexp.MustCompile(`[0-9]+`)

// TravelEstimate is a provider's distance and duration for one station to
// reach one incident. Both texts are kept as the provider wrote them.
type TravelEstimate struct {
	StationName  string `json:"station"`
	DistanceText string `json:"distance"`
	DurationText string `json:"duration"`
}

// DispatchDecision is the chosen responder and the metrics that justified
// the choice.
type DispatchDecision struct {
	Category         Category   `json:"category"`
	ChosenStation    string     `json:"chosenStation"`
	Distance         string     `json:"distance"`
	ETAMinutes       int        `json:"etaMinutes"`
	ETAText          string     `json:"eta"`
	StationLocation  Coordinate `json:"stationLocation"`
	IncidentLocation Coordinate `json:"incidentLocation"`

	// Skipped lists stations whose duration could not be parsed, in input order.
	Skipped []string `json:"skipped,omitempty"`
}

// ParseMinutes extracts the whole-minute count from a provider duration
// string. Only the first digit run counts: "1 hour 5 mins" parses as 1, which
// is why providers in this service render durations in minutes only.
func ParseMinutes(duration string) (int, bool) {
	digits := leadingMinutesRe.FindString(duration)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Resolve picks the station with the smallest parsed ETA.
//
// The category is checked first and the catalog second, so neither estimates
// nor catalog contents are inspected for an unrecognized category. Estimates
// whose duration has no digits are skipped with a warning. Equal ETAs keep the
// earliest estimate in input order. The winner must exist in the catalog for
// the category; a mismatch between provider and catalog names is reported as
// ErrStationNotInCatalog rather than patched over.
//
// Resolve has no side effects beyond logging and may be called concurrently.
func Resolve(category Category, incident Coordinate, estimates []TravelEstimate, catalog *StationCatalog, logger *slog.Logger) (DispatchDecision, error) {
	if !category.Valid() {
		return DispatchDecision{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if catalog.Len(category) == 0 {
		return DispatchDecision{}, fmt.Errorf("%w: category %q", ErrNoStationsAvailable, category)
	}

	var (
		best     TravelEstimate
		bestMins int
		found    bool
		skipped  []string
	)
	for _, est := range estimates {
		mins, ok := ParseMinutes(est.DurationText)
		if !ok {
			if logger != nil {
				logger.Warn("skipping unparsable travel estimate",
					"category", category,
					"station", est.StationName,
					"duration", est.DurationText,
				)
			}
			skipped = append(skipped, est.StationName)
			continue
		}
		if !found || mins < bestMins {
			best, bestMins, found = est, mins, true
		}
	}

	if !found {
		return DispatchDecision{}, fmt.Errorf("%w: %d estimates for category %q", ErrNoParsableEstimate, len(estimates), category)
	}

	loc, ok := catalog.Lookup(category, best.StationName)
	if !ok {
		return DispatchDecision{}, fmt.Errorf("%w: %q in category %q", ErrStationNotInCatalog, best.StationName, category)
	}

	return DispatchDecision{
		Category:         category,
		ChosenStation:    best.StationName,
		Distance:         best.DistanceText,
		ETAMinutes:       bestMins,
		ETAText:          best.DurationText,
		StationLocation:  loc,
		IncidentLocation: incident,
		Skipped:          skipped,
	}, nil
}
