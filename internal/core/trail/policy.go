package trail

import (
	"time"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/pkg/geospatial"
)

// Policy decides whether a candidate fix becomes a breadcrumb. last is nil
// for the first fix of a session.
type Policy interface {
	ShouldRetain(candidate domain.BreadcrumbPoint, last *domain.BreadcrumbPoint) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(candidate domain.BreadcrumbPoint, last *domain.BreadcrumbPoint) bool

func (f PolicyFunc) ShouldRetain(candidate domain.BreadcrumbPoint, last *domain.BreadcrumbPoint) bool {
	return f(candidate, last)
}

// RetainAll keeps every valid fix.
var RetainAll Policy = PolicyFunc(func(domain.BreadcrumbPoint, *domain.BreadcrumbPoint) bool { return true })

const (
	DefaultMinDistance = 15.0 // meters
	DefaultMaxInterval = time.Minute
)

// DistanceTimePolicy keeps a fix when it moved more than MinDistance meters
// from the last breadcrumb, or when more than MaxInterval passed since it.
// The interval rule leaves periodic breadcrumbs for a stationary source so
// dwell time stays visible. A zero MaxInterval disables the interval rule.
type DistanceTimePolicy struct {
	MinDistance float64
	MaxInterval time.Duration
}

func (p DistanceTimePolicy) ShouldRetain(candidate domain.BreadcrumbPoint, last *domain.BreadcrumbPoint) bool {
	if last == nil {
		return true
	}
	// Out-of-order source clocks give a negative elapsed time, which never
	// satisfies the interval rule.
	if p.MaxInterval > 0 && candidate.Time.Sub(last.Time) > p.MaxInterval {
		return true
	}
	return geospatial.Haversine(last.Lat, last.Lon, candidate.Lat, candidate.Lon) > p.MinDistance
}
