package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

// ProviderName labels estimates produced by the Distance Matrix client.
const ProviderName = "google_maps"

const statusOK = "OK"

// Client implements domain.TravelTimeProvider using the Google Distance
// Matrix API. All candidate stations go out in a single request.
type Client struct {
	maps   *maps.Client
	mode   maps.Mode
	logger *slog.Logger
}

// NewClient creates a Distance Matrix client for the given travel mode.
func NewClient(apiKey string, timeout time.Duration, mode string, logger *slog.Logger) (*Client, error) {
	return newClient(logger, mode,
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

func newClient(logger *slog.Logger, mode string, opts ...maps.ClientOption) (*Client, error) {
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create google maps client: %w", err)
	}
	return &Client{
		maps:   mc,
		mode:   maps.Mode(mode),
		logger: logger,
	}, nil
}

func (c *Client) Name() string { return ProviderName }

// Estimate returns one estimate per station, in station order. Elements the
// API could not route carry their status as the duration text.
func (c *Client) Estimate(ctx context.Context, origin domain.Coordinate, stations []domain.Station) ([]domain.TravelEstimate, error) {
	if len(stations) == 0 {
		return nil, nil
	}

	destinations := make([]string, len(stations))
	for i, s := range stations {
		destinations[i] = formatLatLng(s.Location)
	}

	req := &maps.DistanceMatrixRequest{
		Origins:      []string{formatLatLng(origin)},
		Destinations: destinations,
		Mode:         c.mode,
		Units:        maps.UnitsMetric,
	}

	resp, err := c.maps.DistanceMatrix(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request: %w", err)
	}
	if len(resp.Rows) != 1 || len(resp.Rows[0].Elements) != len(stations) {
		return nil, errors.New("distance matrix response does not match request shape")
	}

	estimates := make([]domain.TravelEstimate, len(stations))
	for i, el := range resp.Rows[0].Elements {
		estimates[i] = toEstimate(stations[i].Name, el)
		if el == nil || el.Status != statusOK {
			c.logger.Debug("distance matrix element not routable",
				"station", stations[i].Name, "status", estimates[i].DurationText)
		}
	}
	return estimates, nil
}

func toEstimate(station string, el *maps.DistanceMatrixElement) domain.TravelEstimate {
	if el == nil {
		return domain.TravelEstimate{StationName: station, DurationText: "UNKNOWN_ERROR"}
	}
	if el.Status != statusOK {
		return domain.TravelEstimate{StationName: station, DurationText: el.Status}
	}
	return domain.TravelEstimate{
		StationName:  station,
		DistanceText: el.Distance.HumanReadable,
		DurationText: FormatMinutes(el.Duration),
	}
}

// FormatMinutes renders a duration as whole minutes, rounding up, so the
// leading integer is the complete ETA ("65 mins" rather than "1 hour 5 mins").
func FormatMinutes(d time.Duration) string {
	minutes := int(math.Ceil(d.Minutes()))
	if minutes <= 1 {
		return "1 min"
	}
	return strconv.Itoa(minutes) + " mins"
}

func formatLatLng(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 6, 64)
}
