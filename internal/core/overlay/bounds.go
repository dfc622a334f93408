package overlay

import (
	"math"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// degreesPerKm approximates one kilometer of latitude (1° ≈ 111 km).
const degreesPerKm = 0.009

// GeoBounds is the accuracy region of a fix: a lat/lng box centered on the
// reported position.
type GeoBounds struct {
	Center  domain.GeoPoint
	HalfLat float64
	HalfLon float64
}

// NewGeoBounds derives the accuracy region for c.
func NewGeoBounds(c domain.Coordinates) GeoBounds {
	dLat, dLon := DistanceToAngle(c.Latitude, c.Accuracy)
	return GeoBounds{Center: c.Point(), HalfLat: dLat, HalfLon: dLon}
}

// Bounds returns the region as a min/max box.
func (g GeoBounds) Bounds() domain.Bounds {
	return domain.BoundsAround(g.Center, g.HalfLat, g.HalfLon)
}

func (g GeoBounds) SouthWest() domain.GeoPoint { return g.Bounds().SouthWest() }

func (g GeoBounds) NorthEast() domain.GeoPoint { return g.Bounds().NorthEast() }

// DistanceToAngle converts a distance in meters around latitude lat into
// latitude and longitude offsets in degrees. It is a small-angle
// approximation; dLon grows without bound towards the poles.
func DistanceToAngle(lat, meters float64) (dLat, dLon float64) {
	km := meters / 1e3
	dLat = km * degreesPerKm
	dLon = dLat / math.Cos(lat*math.Pi/180)
	return dLat, dLon
}
