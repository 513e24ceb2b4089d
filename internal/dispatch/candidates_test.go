package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

func names(stations []domain.Station) []string {
	out := make([]string, len(stations))
	for i, s := range stations {
		out[i] = s.Name
	}
	return out
}

func TestCandidateIndex_Nearest(t *testing.T) {
	stations := []domain.Station{
		{Name: "far-west", Location: domain.Coordinate{Lat: 25.0, Lng: 54.0}},
		{Name: "near-1", Location: domain.Coordinate{Lat: 25.01, Lng: 55.01}},
		{Name: "far-north", Location: domain.Coordinate{Lat: 26.0, Lng: 55.0}},
		{Name: "near-2", Location: domain.Coordinate{Lat: 24.99, Lng: 54.98}},
	}
	idx := newCandidateIndex(stations)

	got := idx.nearest(domain.Coordinate{Lat: 25.0, Lng: 55.0}, 2)
	assert.Equal(t, []string{"near-1", "near-2"}, names(got), "results stay in catalog order")
}

func TestCandidateIndex_KCoversAll(t *testing.T) {
	stations := []domain.Station{
		{Name: "a", Location: domain.Coordinate{Lat: 1, Lng: 1}},
		{Name: "b", Location: domain.Coordinate{Lat: 2, Lng: 2}},
	}
	idx := newCandidateIndex(stations)

	assert.Equal(t, []string{"a", "b"}, names(idx.nearest(domain.Coordinate{}, 0)))
	assert.Equal(t, []string{"a", "b"}, names(idx.nearest(domain.Coordinate{}, 5)))

	got := idx.nearest(domain.Coordinate{}, 5)
	got[0].Name = "mutated"
	assert.Equal(t, "a", stations[0].Name, "returned slice must not alias the catalog")
}

func TestCandidateIndex_MatchesBruteForce(t *testing.T) {
	var stations []domain.Station
	for i := 0; i < 40; i++ {
		stations = append(stations, domain.Station{
			Name:     fmt.Sprintf("s%02d", i),
			Location: domain.Coordinate{Lat: 24.8 + float64(i%8)*0.07, Lng: 54.9 + float64(i/8)*0.11},
		})
	}
	idx := newCandidateIndex(stations)
	origin := domain.Coordinate{Lat: 25.1, Lng: 55.2}

	got := idx.nearest(origin, 5)
	require.Len(t, got, 5)

	// Every excluded station must be at least as far as the farthest included one.
	var maxIncluded float64
	included := make(map[string]bool)
	for _, s := range got {
		included[s.Name] = true
		if d := domain.HaversineKm(origin, s.Location); d > maxIncluded {
			maxIncluded = d
		}
	}
	for _, s := range stations {
		if !included[s.Name] {
			assert.GreaterOrEqual(t, domain.HaversineKm(origin, s.Location), maxIncluded*0.95, s.Name)
		}
	}
}

func TestCandidateIndex_AcrossAntimeridian(t *testing.T) {
	stations := []domain.Station{
		{Name: "suva", Location: domain.Coordinate{Lat: -18.14, Lng: 178.44}},
		{Name: "apia", Location: domain.Coordinate{Lat: -13.83, Lng: -171.76}},
		{Name: "taveuni", Location: domain.Coordinate{Lat: -16.85, Lng: -179.97}},
		{Name: "vila", Location: domain.Coordinate{Lat: -17.73, Lng: 168.32}},
	}
	idx := newCandidateIndex(stations)

	got := idx.nearest(domain.Coordinate{Lat: -17.0, Lng: 179.9}, 2)
	assert.Equal(t, []string{"suva", "taveuni"}, names(got))
}

func TestWrapLng(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{10, 10},
		{-10, -10},
		{190, -170},
		{-190, 170},
		{359.5, -0.5},
		{180, -180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrapLng(tt.in), 1e-9, "wrapLng(%v)", tt.in)
	}
}
