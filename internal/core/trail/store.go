package trail

import (
	"iter"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/pkg/geospatial"
)

// Store is the append-only point store of one trail. Append must be called
// from a single goroutine; views returned by View may be read anywhere.
type Store struct {
	points  []domain.BreadcrumbPoint
	nextSeq uint64
}

// NewStore creates a store whose first point gets sequence number firstSeq.
func NewStore(firstSeq uint64) *Store {
	if firstSeq == 0 {
		firstSeq = 1
	}
	return &Store{nextSeq: firstSeq}
}

// Append validates p, assigns its sequence number and stores it.
// The store does not deduplicate.
func (s *Store) Append(p domain.BreadcrumbPoint) (uint64, error) {
	if ok, reason := geospatial.ValidCoordinate(p.Lat, p.Lon); !ok {
		return 0, &domain.InvalidSampleError{Lat: p.Lat, Lon: p.Lon, Reason: reason}
	}
	p.Seq = s.nextSeq
	s.nextSeq++
	s.points = append(s.points, p)
	return p.Seq, nil
}

// Count returns the number of points in the current session.
func (s *Store) Count() uint64 { return uint64(len(s.points)) }

// NextSeq is the sequence number the next appended point will get.
func (s *Store) NextSeq() uint64 { return s.nextSeq }

// Clear drops all points. Sequence numbers keep increasing so a watermark
// from the previous session never hides new points.
func (s *Store) Clear() {
	s.points = nil
}

// View returns an immutable view of the points appended so far.
func (s *Store) View() PointsView {
	n := len(s.points)
	return PointsView{points: s.points[:n:n]}
}

// PointsView is a read-only prefix of a store.
type PointsView struct {
	points []domain.BreadcrumbPoint
}

// Len returns the number of points in the view.
func (v PointsView) Len() int { return len(v.points) }

// Last returns the newest point.
func (v PointsView) Last() (domain.BreadcrumbPoint, bool) {
	if len(v.points) == 0 {
		return domain.BreadcrumbPoint{}, false
	}
	return v.points[len(v.points)-1], true
}

// Since yields, in append order, every point with a sequence number greater
// than seq. Callers resume from the last Seq they consumed.
func (v PointsView) Since(seq uint64) iter.Seq[domain.BreadcrumbPoint] {
	return func(yield func(domain.BreadcrumbPoint) bool) {
		for _, p := range v.points[v.firstAfter(seq):] {
			if !yield(p) {
				return
			}
		}
	}
}

// firstAfter relies on sequence numbers being contiguous inside a session.
func (v PointsView) firstAfter(seq uint64) int {
	if len(v.points) == 0 {
		return 0
	}
	base := v.points[0].Seq
	if seq < base {
		return 0
	}
	i := seq - base + 1
	if i > uint64(len(v.points)) {
		return len(v.points)
	}
	return int(i)
}
