package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// BreadcrumbPoint is one retained position sample. Seq is assigned by the
// point store and never reused, including across trail resets.
type BreadcrumbPoint struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"time"`
	Seq  uint64    `json:"seq"`
}

// Geo returns the point's coordinate.
func (p BreadcrumbPoint) Geo() GeoPoint {
	return GeoPoint{Lat: p.Lat, Lon: p.Lon}
}

// Segment is the line between two consecutive retained points. Seq is the
// sequence number of the later point. A and B are the endpoints in index space.
type Segment struct {
	Seq  uint64          `json:"seq"`
	From BreadcrumbPoint `json:"from"`
	To   BreadcrumbPoint `json:"to"`
	A    orb.Point       `json:"-"`
	B    orb.Point       `json:"-"`
}

// Bound returns the index-space bound of the segment.
func (s Segment) Bound() orb.Bound {
	return s.A.Bound().Extend(s.B)
}

// Sample is a raw fix from a location source, before validation and
// simplification.
type Sample struct {
	SourceID string    `json:"source_id,omitempty"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Time     time.Time `json:"time"`
}

// TrailState is the lifecycle state of a trail.
type TrailState string

const (
	TrailEmpty    TrailState = "empty"
	TrailTracking TrailState = "tracking"
	TrailCleared  TrailState = "cleared"
)

// ChangeKind tells overlay clients what happened to the trail.
type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeCleared  ChangeKind = "cleared"
)

// ChangeEvent is emitted after every retained sample and after a reset.
// Delta covers what was added by this change; Extent covers the whole trail.
type ChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	SessionID string     `json:"session_id"`
	Seq       uint64     `json:"seq"`
	Delta     *Bounds    `json:"delta,omitempty"`
	Extent    *Bounds    `json:"extent,omitempty"`
	Time      time.Time  `json:"time"`
}
