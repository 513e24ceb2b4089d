package domain

import "context"

// TravelTimeProvider estimates how long each station would take to reach an
// incident.
type TravelTimeProvider interface {
	// Name identifies the provider in dispatch records and metrics.
	Name() string

	// Estimate returns one TravelEstimate per station, in station order.
	// A station the provider cannot route to still gets an entry, with a
	// duration text that carries no minute count.
	Estimate(ctx context.Context, origin Coordinate, stations []Station) ([]TravelEstimate, error)
}
