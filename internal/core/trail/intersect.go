package trail

import "github.com/paulmach/orb"

// SegmentIntersects reports whether the segment ab touches r. Points on the
// boundary of r count as inside. A zero-length segment is treated as a point.
func SegmentIntersects(a, b orb.Point, r orb.Bound) bool {
	if r.Contains(a) || r.Contains(b) {
		return true
	}
	if !a.Bound().Extend(b).Intersects(r) {
		return false
	}

	// Liang-Barsky clipping of the parametric line a + t(b-a), t in [0,1].
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
		return true
	}

	dx, dy := b[0]-a[0], b[1]-a[1]
	return clip(-dx, a[0]-r.Min[0]) &&
		clip(dx, r.Max[0]-a[0]) &&
		clip(-dy, a[1]-r.Min[1]) &&
		clip(dy, r.Max[1]-a[1])
}
