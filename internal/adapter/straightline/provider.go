// Package straightline estimates travel time from great-circle distance at a
// fixed average speed. It backs dispatch when no routing API is configured.
package straightline

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

// ProviderName labels estimates produced by the straight-line provider.
const ProviderName = "straight_line"

// Provider implements domain.TravelTimeProvider without network calls.
type Provider struct {
	speedKmh float64
}

// NewProvider returns a provider assuming the given average speed.
func NewProvider(speedKmh float64) *Provider {
	return &Provider{speedKmh: speedKmh}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Estimate(ctx context.Context, origin domain.Coordinate, stations []domain.Station) ([]domain.TravelEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	estimates := make([]domain.TravelEstimate, len(stations))
	for i, s := range stations {
		km := domain.HaversineKm(s.Location, origin)
		estimates[i] = domain.TravelEstimate{
			StationName:  s.Name,
			DistanceText: fmt.Sprintf("%.1f km", km),
			DurationText: formatMinutes(p.minutes(km)),
		}
	}
	return estimates, nil
}

// minutes rounds up and never reports less than one minute.
func (p *Provider) minutes(km float64) int {
	m := int(math.Ceil(km / p.speedKmh * 60))
	if m < 1 {
		return 1
	}
	return m
}

func formatMinutes(m int) string {
	if m == 1 {
		return "1 min"
	}
	return fmt.Sprintf("%d mins", m)
}
