package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// maxMercatorLat is where Web Mercator turns square; beyond it y diverges.
const maxMercatorLat = 85.05112878

// Identity maps a coordinate to index space as (lon, lat).
func Identity(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// WebMercator maps a coordinate to EPSG:3857 meters. Latitudes are clamped
// so polar fixes stay finite.
func WebMercator(lat, lon float64) orb.Point {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	} else if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}
	return project.Point(orb.Point{lon, lat}, project.WGS84.ToMercator)
}

// ProjectionByName resolves a configured projection name.
func ProjectionByName(name string) (func(lat, lon float64) orb.Point, error) {
	switch name {
	case "", "identity", "wgs84":
		return Identity, nil
	case "mercator", "webmercator", "epsg3857":
		return WebMercator, nil
	default:
		return nil, fmt.Errorf("unknown projection %q", name)
	}
}
