package trail

import (
	"iter"

	"github.com/paulmach/orb"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// Snapshot is an immutable, consistent view of a trail. It can be read
// arbitrarily long after it was produced and from any goroutine.
type Snapshot struct {
	SessionID string
	State     domain.TrailState
	// Watermark is the highest sequence number visible in this snapshot,
	// or 0 when the session has no points.
	Watermark uint64

	points    PointsView
	index     IndexView
	extent    orb.Bound
	geoExtent domain.Bounds
}

// Query returns the segments intersecting rect (index space).
func (s *Snapshot) Query(rect orb.Bound) []domain.Segment {
	return s.index.Query(rect)
}

// QuerySince returns only segments newer than since that intersect rect,
// so a renderer redrawing an unchanged viewport does incremental work.
func (s *Snapshot) QuerySince(rect orb.Bound, since uint64) []domain.Segment {
	return s.index.QuerySince(rect, since)
}

// Segments is the lazy form of QuerySince.
func (s *Snapshot) Segments(rect orb.Bound, since uint64) iter.Seq[domain.Segment] {
	return s.index.Segments(rect, since)
}

// PointsSince yields the retained points with a sequence number above seq.
func (s *Snapshot) PointsSince(seq uint64) iter.Seq[domain.BreadcrumbPoint] {
	return s.points.Since(seq)
}

// Extent returns the index-space rectangle covering every point.
func (s *Snapshot) Extent() (orb.Bound, bool) {
	return s.extent, s.points.Len() > 0
}

// GeoExtent returns the lat/lon rectangle covering every point.
func (s *Snapshot) GeoExtent() (domain.Bounds, bool) {
	return s.geoExtent, s.points.Len() > 0
}

// PointCount returns the number of retained points.
func (s *Snapshot) PointCount() int { return s.points.Len() }

// SegmentCount returns the number of indexed segments.
func (s *Snapshot) SegmentCount() int { return s.index.Len() }

// Points returns every retained point as an ordered path.
func (s *Snapshot) Points() []domain.BreadcrumbPoint {
	out := make([]domain.BreadcrumbPoint, 0, s.points.Len())
	for p := range s.points.Since(0) {
		out = append(out, p)
	}
	return out
}

// IndexHeight exposes the R-tree height for diagnostics.
func (s *Snapshot) IndexHeight() int { return s.index.Height() }
