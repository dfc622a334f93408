// Package geospatial holds great-circle helpers.
package geospatial

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Speed returns the average speed in m/s needed to cover meters in seconds,
// or 0 when seconds is not positive.
func Speed(meters, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return meters / seconds
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
