package domain

import "github.com/paulmach/orb"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb returns the point in orb's lon/lat order.
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// GeoPointFromOrb converts an orb point back to a GeoPoint.
func GeoPointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsAround returns the box centered on p with the given half-extents in degrees.
func BoundsAround(p GeoPoint, dLat, dLon float64) Bounds {
	return Bounds{
		MinLat: p.Lat - dLat,
		MinLon: p.Lon - dLon,
		MaxLat: p.Lat + dLat,
		MaxLon: p.Lon + dLon,
	}
}

func (b Bounds) Orb() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// SouthWest returns the minimum corner.
func (b Bounds) SouthWest() GeoPoint {
	return GeoPoint{Lat: b.MinLat, Lon: b.MinLon}
}

// NorthEast returns the maximum corner.
func (b Bounds) NorthEast() GeoPoint {
	return GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPointFromOrb(b.Orb().Center())
}

// Intersects reports whether the two boxes share any point, edges included.
func (b Bounds) Intersects(other Bounds) bool {
	return b.Orb().Intersects(other.Orb())
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p GeoPoint) bool {
	return b.Orb().Contains(p.Orb())
}

// HalfExtents returns half the box height and width in degrees.
func (b Bounds) HalfExtents() (dLat, dLon float64) {
	return (b.MaxLat - b.MinLat) / 2, (b.MaxLon - b.MinLon) / 2
}
