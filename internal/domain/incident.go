package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category identifies the kind of responder an incident needs.
type Category string

const (
	CategoryFire    Category = "fire"
	CategoryMedical Category = "medical"
	CategoryPolice  Category = "police"
)

// Categories lists every recognized category in canonical order.
var Categories = []Category{CategoryFire, CategoryMedical, CategoryPolice}

// ErrInvalidIncident is returned when an incident payload is malformed or
// carries out-of-range coordinates.
var ErrInvalidIncident = errors.New("invalid incident")

// Valid reports whether c is one of the recognized categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFire, CategoryMedical, CategoryPolice:
		return true
	}
	return false
}

// ParseCategory normalizes a user-supplied category. Matching is
// case-insensitive; "hospital" and "ambulance" are accepted as medical.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fire":
		return CategoryFire, nil
	case "medical", "hospital", "ambulance":
		return CategoryMedical, nil
	case "police":
		return CategoryPolice, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinate is within latitude/longitude bounds.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lng)
	}
	return nil
}

// IncidentRequest is a reported emergency awaiting a responder.
type IncidentRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Category  Category `json:"category"`
}

// Location returns the incident position as a Coordinate.
func (r IncidentRequest) Location() Coordinate {
	return Coordinate{Lat: r.Latitude, Lng: r.Longitude}
}

// incidentPayload is the wire form accepted from HTTP clients and the intake
// topic. Older front ends send "emergencyType" instead of "category".
type incidentPayload struct {
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Category      string   `json:"category"`
	EmergencyType string   `json:"emergencyType"`
}

// DecodeIncident parses a JSON incident payload. The category is normalized
// with ParseCategory, so an unrecognized value yields ErrInvalidCategory;
// structural problems yield ErrInvalidIncident.
func DecodeIncident(data []byte) (IncidentRequest, error) {
	var p incidentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return IncidentRequest{}, fmt.Errorf("%w: %v", ErrInvalidIncident, err)
	}
	if p.Latitude == nil || p.Longitude == nil {
		return IncidentRequest{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidIncident)
	}

	loc := Coordinate{Lat: *p.Latitude, Lng: *p.Longitude}
	if err := loc.Validate(); err != nil {
		return IncidentRequest{}, fmt.Errorf("%w: %v", ErrInvalidIncident, err)
	}

	raw := p.Category
	if strings.TrimSpace(raw) == "" {
		raw = p.EmergencyType
	}
	category, err := ParseCategory(raw)
	if err != nil {
		return IncidentRequest{}, err
	}

	return IncidentRequest{
		Latitude:  loc.Lat,
		Longitude: loc.Lng,
		Category:  category,
	}, nil
}
