package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Station is a fixed-location response unit that can be dispatched.
type Station struct {
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}

// StationCatalog maps each category to its stations. It is immutable once
// built, so a single catalog may be shared by concurrent resolvers without
// locking. A nil *StationCatalog behaves as an empty catalog.
type StationCatalog struct {
	stations map[Category][]Station
	index    map[Category]map[string]Coordinate
}

// NewStationCatalog validates and copies the given stations. Station order
// within a category is preserved; it is the order candidates are offered to
// the travel-time provider.
func NewStationCatalog(stations map[Category][]Station) (*StationCatalog, error) {
	c := &StationCatalog{
		stations: make(map[Category][]Station, len(stations)),
		index:    make(map[Category]map[string]Coordinate, len(stations)),
	}
	for category, list := range stations {
		if !category.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
		}
		idx := make(map[string]Coordinate, len(list))
		ordered := make([]Station, 0, len(list))
		for _, s := range list {
			if s.Name == "" {
				return nil, fmt.Errorf("%s: station with empty name", category)
			}
			if _, dup := idx[s.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate station %q", category, s.Name)
			}
			if err := s.Location.Validate(); err != nil {
				return nil, fmt.Errorf("%s: station %q: %w", category, s.Name, err)
			}
			idx[s.Name] = s.Location
			ordered = append(ordered, s)
		}
		c.stations[category] = ordered
		c.index[category] = idx
	}
	return c, nil
}

// Stations returns a copy of the stations for a category in catalog order.
func (c *StationCatalog) Stations(category Category) []Station {
	if c == nil {
		return nil
	}
	list := c.stations[category]
	out := make([]Station, len(list))
	copy(out, list)
	return out
}

// Lookup returns the coordinate of a named station within a category.
func (c *StationCatalog) Lookup(category Category, name string) (Coordinate, bool) {
	if c == nil {
		return Coordinate{}, false
	}
	loc, ok := c.index[category][name]
	return loc, ok
}

// Len returns the number of stations in a category.
func (c *StationCatalog) Len(category Category) int {
	if c == nil {
		return 0
	}
	return len(c.stations[category])
}

// Total returns the number of stations across all categories.
func (c *StationCatalog) Total() int {
	n := 0
	for _, category := range Categories {
		n += c.Len(category)
	}
	return n
}

// Categories returns the categories that have at least one station, in
// canonical order.
func (c *StationCatalog) Categories() []Category {
	var out []Category
	for _, category := range Categories {
		if c.Len(category) > 0 {
			out = append(out, category)
		}
	}
	return out
}

// MarshalJSON renders the catalog in its persisted layout:
// category -> station name -> {lat, lng}. Categories appear in canonical
// order and stations in catalog order, so the output round-trips through
// LoadCatalog unchanged.
func (c *StationCatalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if c == nil {
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	n := 0
	for _, category := range Categories {
		stations, ok := c.stations[category]
		if !ok {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		key, err := json.Marshal(category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		list, err := StationList(stations).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(list)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StationList renders stations as a JSON object keyed by name, keeping
// slice order.
type StationList []Station

// MarshalJSON implements json.Marshaler.
func (l StationList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		loc, err := json.Marshal(s.Location)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(loc)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// stationPayload uses pointers so a missing coordinate is distinguishable
// from the equator or prime meridian.
type stationPayload struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// LoadCatalog decodes a catalog in its persisted layout. Unlike decoding into
// a map, it keeps stations in file order so that equal-ETA ties resolve the
// same way on every run. Category keys go through ParseCategory, so a file
// keyed by "hospital" loads as medical.
func LoadCatalog(r io.Reader) (*StationCatalog, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	stations := make(map[Category][]Station)
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		category, err := ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		if _, dup := stations[category]; dup {
			return nil, fmt.Errorf("parse catalog: category %q listed more than once", category)
		}

		list, err := decodeStations(dec)
		if err != nil {
			return nil, fmt.Errorf("parse catalog: %s: %w", key, err)
		}
		stations[category] = list
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	return NewStationCatalog(stations)
}

func decodeStations(dec *json.Decoder) ([]Station, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	list := make([]Station, 0)
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var p stationPayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("station %q: %w", name, err)
		}
		if p.Lat == nil || p.Lng == nil {
			return nil, fmt.Errorf("station %q: lat and lng are required", name)
		}
		list = append(list, Station{Name: name, Location: Coordinate{Lat: *p.Lat, Lng: *p.Lng}})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return list, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", errors.New("expected object key")
	}
	return s, nil
}
