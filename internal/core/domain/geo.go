package domain

import "github.com/paulmach/orb"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsFromOrb converts an index-space bound whose X axis is longitude.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{MinLat: b.Min.Y(), MinLon: b.Min.X(), MaxLat: b.Max.Y(), MaxLon: b.Max.X()}
}

// Orb returns the bound with longitude on X and latitude on Y.
func (b Bounds) Orb() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Valid reports whether min <= max on both axes.
func (b Bounds) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}
