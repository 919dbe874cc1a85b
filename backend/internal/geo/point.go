// Package geo holds the coordinate model, its WKT encoding and the spatial
// indices used for radius search over members and diary entries.
package geo

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point is a WGS84 coordinate pair. Lat and Lon are authoritative; the WKT
// string stored next to them is always derived from these two fields.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// NewPoint validates and builds a Point.
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate rejects non-finite and out-of-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lon)
	}
	return nil
}

// orb points are (x, y) = (lon, lat)
func (p Point) orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func fromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lon: o.Lon()}
}

// WKT renders the point as "POINT (lon lat)" using the shortest decimal form
// that parses back to the same float64.
func (p Point) WKT() string {
	return "POINT (" + formatCoord(p.Lon) + " " + formatCoord(p.Lat) + ")"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseWKT decodes a WKT POINT string back into a Point.
func ParseWKT(s string) (Point, error) {
	o, err := wkt.UnmarshalPoint(s)
	if err != nil {
		return Point{}, fmt.Errorf("parse wkt %q: %w", s, err)
	}
	p := fromOrb(o)
	if err := p.Validate(); err != nil {
		return Point{}, fmt.Errorf("parse wkt %q: %w", s, err)
	}
	return p, nil
}

// DistanceKm is the great-circle (haversine) distance between two points.
func DistanceKm(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.orb(), b.orb()) / 1000
}
