package domain

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fireCatalog(t *testing.T) *StationCatalog {
	t.Helper()
	c, err := NewStationCatalog(map[Category][]Station{
		CategoryFire: {
			{Name: "stationA", Location: Coordinate{Lat: 25.10, Lng: 55.20}},
			{Name: "stationB", Location: Coordinate{Lat: 25.20, Lng: 55.30}},
			{Name: "stationC", Location: Coordinate{Lat: 25.30, Lng: 55.40}},
		},
	})
	require.NoError(t, err)
	return c
}

var incident = Coordinate{Lat: 25.2048, Lng: 55.2708}

func TestParseMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"12 mins", 12, true},
		{"1 min", 1, true},
		{"~8-10 min", 8, true},
		{"arriving in 3-5 min", 3, true},
		{"0 mins", 0, true},
		{"007 mins", 7, true},
		{"1 hour 5 mins", 1, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"ZERO_RESULTS", 0, false},
		{"99999999999999999999999 mins", 0, false},
		{"٣ mins", 0, false}, // non-ASCII digits do not count
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseMinutes(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_PicksFirstOfEqualMinimum(t *testing.T) {
	estimates := []TravelEstimate{
		{StationName: "stationA", DurationText: "5 mins", DistanceText: "3.2 km"},
		{StationName: "stationB", DurationText: "4 mins", DistanceText: "2.1 km"},
		{StationName: "stationC", DurationText: "4 mins", DistanceText: "5.0 km"},
	}

	got, err := Resolve(CategoryFire, incident, estimates, fireCatalog(t), discardLogger())
	require.NoError(t, err)

	want := DispatchDecision{
		Category:         CategoryFire,
		ChosenStation:    "stationB",
		Distance:         "2.1 km",
		ETAMinutes:       4,
		ETAText:          "4 mins",
		StationLocation:  Coordinate{Lat: 25.20, Lng: 55.30},
		IncidentLocation: incident,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_TieFollowsInputOrder(t *testing.T) {
	estimates := []TravelEstimate{
		{StationName: "stationC", DurationText: "4 mins", DistanceText: "5.0 km"},
		{StationName: "stationB", DurationText: "4 mins", DistanceText: "2.1 km"},
	}

	got, err := Resolve(CategoryFire, incident, estimates, fireCatalog(t), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "stationC", got.ChosenStation)
	assert.Equal(t, "5.0 km", got.Distance)
}

func TestResolve_SkipsUnparsable(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	estimates := []TravelEstimate{
		{StationName: "stationA", DurationText: "n/a"},
		{StationName: "stationB", DurationText: "7 mins", DistanceText: "4.4 km"},
	}

	got, err := Resolve(CategoryFire, incident, estimates, fireCatalog(t), logger)
	require.NoError(t, err)
	assert.Equal(t, "stationB", got.ChosenStation)
	assert.Equal(t, 7, got.ETAMinutes)
	assert.Equal(t, []string{"stationA"}, got.Skipped)
	assert.Contains(t, buf.String(), "skipping unparsable travel estimate")
	assert.Contains(t, buf.String(), "station=stationA")
}

func TestResolve_OnlyUnparsable(t *testing.T) {
	estimates := []TravelEstimate{{StationName: "stationA", DurationText: "n/a"}}

	_, err := Resolve(CategoryFire, incident, estimates, fireCatalog(t), discardLogger())
	require.ErrorIs(t, err, ErrNoParsableEstimate)
}

func TestResolve_EmptyEstimates(t *testing.T) {
	_, err := Resolve(CategoryFire, incident, nil, fireCatalog(t), discardLogger())
	require.ErrorIs(t, err, ErrNoParsableEstimate)
}

func TestResolve_StationNotInCatalog(t *testing.T) {
	estimates := []TravelEstimate{
		{StationName: "stationA", DurationText: "9 mins"},
		{StationName: "ghost", DurationText: "2 mins"},
	}

	got, err := Resolve(CategoryFire, incident, estimates, fireCatalog(t), discardLogger())
	require.ErrorIs(t, err, ErrStationNotInCatalog)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, DispatchDecision{}, got)
}

func TestResolve_InvalidCategoryInspectsNothing(t *testing.T) {
	// A nil catalog and nil logger would fail or panic if touched.
	_, err := Resolve(Category("flood"), incident, []TravelEstimate{{StationName: "x", DurationText: "n/a"}}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestResolve_NoStationsForCategory(t *testing.T) {
	estimates := []TravelEstimate{{StationName: "stationA", DurationText: "3 mins"}}

	_, err := Resolve(CategoryPolice, incident, estimates, fireCatalog(t), discardLogger())
	require.ErrorIs(t, err, ErrNoStationsAvailable)

	_, err = Resolve(CategoryFire, incident, estimates, nil, discardLogger())
	require.ErrorIs(t, err, ErrNoStationsAvailable)
}

func TestResolve_Idempotent(t *testing.T) {
	catalog := fireCatalog(t)
	estimates := []TravelEstimate{
		{StationName: "stationA", DurationText: "garbage"},
		{StationName: "stationC", DurationText: "11 mins", DistanceText: "8 km"},
		{StationName: "stationB", DurationText: "~10-12 min", DistanceText: "7 km"},
	}

	first, err := Resolve(CategoryFire, incident, estimates, catalog, discardLogger())
	require.NoError(t, err)
	second, err := Resolve(CategoryFire, incident, estimates, catalog, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "stationB", first.ChosenStation)
	assert.Equal(t, 10, first.ETAMinutes)
	assert.Equal(t, "~10-12 min", first.ETAText)
}

func TestResolve_MinimumAcrossManyEstimates(t *testing.T) {
	catalog := fireCatalog(t)
	durations := []string{"30 mins", "12 mins", "n/a", "12 mins", "45 mins", "3 mins", "3 mins"}
	names := []string{"stationA", "stationB", "stationC"}

	estimates := make([]TravelEstimate, len(durations))
	for i, d := range durations {
		estimates[i] = TravelEstimate{StationName: names[i%len(names)], DurationText: d}
	}

	got, err := Resolve(CategoryFire, incident, estimates, catalog, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, got.ETAMinutes)
	// Index 5 is the first "3 mins" entry.
	assert.Equal(t, names[5%len(names)], got.ChosenStation)
}
