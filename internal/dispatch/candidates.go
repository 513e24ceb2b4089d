package dispatch

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

// pointTolerance gives each station a non-degenerate bounding box.
const pointTolerance = 1e-9

// candidateIndex answers "which k stations are closest" for one category so
// that only those are sent to the travel-time provider.
type candidateIndex struct {
	tree     *rtreego.Rtree
	stations []domain.Station
	// Longitudes are taken relative to refLng and wrapped into [-180, 180)
	// so stations on both sides of the antimeridian stay adjacent. lngScale
	// projects them so that planar distance roughly matches ground distance
	// around the category's stations.
	refLng   float64
	lngScale float64
}

type stationItem struct {
	pos   int // position in catalog order
	point rtreego.Point
}

func (s *stationItem) Bounds() rtreego.Rect {
	return s.point.ToRect(pointTolerance)
}

func newCandidateIndex(stations []domain.Station) *candidateIndex {
	var sumLat, sumSin, sumCos float64
	for _, s := range stations {
		sumLat += s.Location.Lat
		rad := s.Location.Lng * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	scale := 1.0
	if len(stations) > 0 {
		scale = math.Cos(sumLat / float64(len(stations)) * math.Pi / 180)
	}

	idx := &candidateIndex{
		tree:     rtreego.NewTree(2, 4, 16),
		stations: stations,
		refLng:   math.Atan2(sumSin, sumCos) * 180 / math.Pi,
		lngScale: scale,
	}
	for i, s := range stations {
		idx.tree.Insert(&stationItem{pos: i, point: idx.project(s.Location)})
	}
	return idx
}

func (idx *candidateIndex) project(c domain.Coordinate) rtreego.Point {
	return rtreego.Point{c.Lat, wrapLng(c.Lng-idx.refLng) * idx.lngScale}
}

// wrapLng maps a longitude difference into [-180, 180).
func wrapLng(d float64) float64 {
	return math.Mod(math.Mod(d+180, 360)+360, 360) - 180
}

// nearest returns the k stations closest to origin, in catalog order so that
// resolver tie-breaking still follows the catalog.
func (idx *candidateIndex) nearest(origin domain.Coordinate, k int) []domain.Station {
	if k <= 0 || k >= len(idx.stations) {
		out := make([]domain.Station, len(idx.stations))
		copy(out, idx.stations)
		return out
	}

	found := idx.tree.NearestNeighbors(k, idx.project(origin))
	positions := make([]int, 0, len(found))
	for _, sp := range found {
		if item, ok := sp.(*stationItem); ok {
			positions = append(positions, item.pos)
		}
	}
	sort.Ints(positions)

	out := make([]domain.Station, len(positions))
	for i, pos := range positions {
		out[i] = idx.stations[pos]
	}
	return out
}
