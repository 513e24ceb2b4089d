package googlemaps

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

const (
	testAPIKey        = "test-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	matrixPath        = "/maps/api/distancematrix/json"
)

var testStations = []domain.Station{
	{Name: "Al Quoz Fire Station", Location: domain.Coordinate{Lat: 25.1372, Lng: 55.2271}},
	{Name: "Karama Fire Station", Location: domain.Coordinate{Lat: 25.2442, Lng: 55.3035}},
}

var testOrigin = domain.Coordinate{Lat: 25.1972, Lng: 55.2744}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := newClient(discardLogger(), "driving",
		maps.WithAPIKey(testAPIKey),
		maps.WithBaseURL(baseURL),
		maps.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func matrixServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Estimate_Success(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, matrixPath, r.URL.Path)
		gotQuery = r.URL.Query()
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{
  "status": "OK",
  "origin_addresses": ["Downtown Dubai"],
  "destination_addresses": ["Al Quoz", "Karama"],
  "rows": [{"elements": [
    {"status": "OK", "distance": {"text": "9.8 km", "value": 9800}, "duration": {"text": "14 mins", "value": 812}},
    {"status": "OK", "distance": {"text": "7.1 km", "value": 7100}, "duration": {"text": "1 hour 5 mins", "value": 3900}}
  ]}]
}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	got, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.NoError(t, err)

	assert.Equal(t, []domain.TravelEstimate{
		{StationName: "Al Quoz Fire Station", DistanceText: "9.8 km", DurationText: "14 mins"},
		{StationName: "Karama Fire Station", DistanceText: "7.1 km", DurationText: "65 mins"},
	}, got)

	assert.Equal(t, []string{"25.197200,55.274400"}, gotQuery["origins"])
	assert.Equal(t, []string{"25.137200,55.227100|25.244200,55.303500"}, gotQuery["destinations"])
	assert.Equal(t, []string{"driving"}, gotQuery["mode"])
	assert.Equal(t, []string{testAPIKey}, gotQuery["key"])
	assert.Equal(t, ProviderName, c.Name())
}

func TestClient_Estimate_ElementStatusBecomesDuration(t *testing.T) {
	srv := matrixServer(t, `{
  "status": "OK",
  "rows": [{"elements": [
    {"status": "ZERO_RESULTS"},
    {"status": "OK", "distance": {"text": "7.1 km", "value": 7100}, "duration": {"text": "11 mins", "value": 630}}
  ]}]
}`)

	c := testClient(t, srv.URL)
	got, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "ZERO_RESULTS", got[0].DurationText)
	assert.Empty(t, got[0].DistanceText)
	_, ok := domain.ParseMinutes(got[0].DurationText)
	assert.False(t, ok, "unroutable elements must not parse as minutes")
	assert.Equal(t, "11 mins", got[1].DurationText)
}

func TestClient_Estimate_TopLevelError(t *testing.T) {
	srv := matrixServer(t, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`)

	c := testClient(t, srv.URL)
	_, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestClient_Estimate_ShapeMismatch(t *testing.T) {
	srv := matrixServer(t, `{"status": "OK", "rows": [{"elements": [
    {"status": "OK", "distance": {"text": "1 km", "value": 1000}, "duration": {"text": "2 mins", "value": 120}}
  ]}]}`)

	c := testClient(t, srv.URL)
	_, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape")
}

func TestClient_Estimate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Estimate(context.Background(), testOrigin, testStations)
	require.Error(t, err)
}

func TestClient_Estimate_NoStationsSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	got, err := c.Estimate(context.Background(), testOrigin, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, called)
}

func TestClient_Estimate_ContextCanceled(t *testing.T) {
	srv := matrixServer(t, `{"status": "OK", "rows": []}`)
	c := testClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Estimate(ctx, testOrigin, testStations)
	require.Error(t, err)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("", time.Second, "driving", discardLogger())
	require.Error(t, err)
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "1 min"},
		{30 * time.Second, "1 min"},
		{60 * time.Second, "1 min"},
		{61 * time.Second, "2 mins"},
		{14 * time.Minute, "14 mins"},
		{65 * time.Minute, "65 mins"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMinutes(tt.in))
		})
	}
}
