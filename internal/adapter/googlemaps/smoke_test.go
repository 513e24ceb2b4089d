//go:build googlemaps

package googlemaps

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

// These tests hit the real Distance Matrix API and require GOOGLE_MAPS_APIKEY.
// Run with: go test -tags=googlemaps ./internal/adapter/googlemaps/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("GOOGLE_MAPS_APIKEY")
	if key == "" {
		t.Fatal("GOOGLE_MAPS_APIKEY must be set to run smoke tests")
	}
	c, err := NewClient(key, 10*time.Second, "driving", discardLogger())
	require.NoError(t, err)
	return c
}

func TestSmoke_Estimate(t *testing.T) {
	c := smokeClient(t)

	got, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.NoError(t, err)
	require.Len(t, got, len(testStations))

	for i, est := range got {
		assert.Equal(t, testStations[i].Name, est.StationName)
		minutes, ok := domain.ParseMinutes(est.DurationText)
		assert.True(t, ok, "duration %q should parse", est.DurationText)
		assert.Positive(t, minutes)
		assert.NotEmpty(t, est.DistanceText)
	}
}

func TestSmoke_Resolve(t *testing.T) {
	c := smokeClient(t)
	catalog, err := domain.NewStationCatalog(map[domain.Category][]domain.Station{
		domain.CategoryFire: testStations,
	})
	require.NoError(t, err)

	estimates, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.NoError(t, err)

	decision, err := domain.Resolve(domain.CategoryFire, testOrigin, estimates, catalog, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, decision.ChosenStation)
	t.Logf("chose %s: %s, %s", decision.ChosenStation, decision.Distance, decision.ETAText)
}
