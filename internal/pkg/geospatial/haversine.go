package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// ValidCoordinate reports whether lat/lon are finite and within WGS 84 range.
func ValidCoordinate(lat, lon float64) (bool, string) {
	switch {
	case math.IsNaN(lat) || math.IsInf(lat, 0):
		return false, "latitude is not finite"
	case math.IsNaN(lon) || math.IsInf(lon, 0):
		return false, "longitude is not finite"
	case lat < -90 || lat > 90:
		return false, "latitude out of range"
	case lon < -180 || lon > 180:
		return false, "longitude out of range"
	}
	return true, ""
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
