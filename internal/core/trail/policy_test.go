package trail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

func TestDistanceTimePolicy(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	last := &domain.BreadcrumbPoint{Lat: 0, Lon: 0, Time: t0}
	p := DistanceTimePolicy{MinDistance: DefaultMinDistance, MaxInterval: DefaultMaxInterval}

	tests := []struct {
		name      string
		candidate domain.BreadcrumbPoint
		last      *domain.BreadcrumbPoint
		want      bool
	}{
		{"first point always kept", domain.BreadcrumbPoint{Lat: 0, Lon: 0, Time: t0}, nil, true},
		{"below distance same second", domain.BreadcrumbPoint{Lat: 0, Lon: 0.0001, Time: t0}, last, false},
		{"identical coordinates", domain.BreadcrumbPoint{Lat: 0, Lon: 0, Time: t0.Add(time.Second)}, last, false},
		{"above distance", domain.BreadcrumbPoint{Lat: 10, Lon: 10, Time: t0.Add(time.Second)}, last, true},
		{"stationary past interval", domain.BreadcrumbPoint{Lat: 0, Lon: 0, Time: t0.Add(2 * time.Minute)}, last, true},
		{"stationary at interval", domain.BreadcrumbPoint{Lat: 0, Lon: 0, Time: t0.Add(time.Minute)}, last, false},
		{"clock went backwards", domain.BreadcrumbPoint{Lat: 0, Lon: 0, Time: t0.Add(-time.Hour)}, last, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldRetain(tt.candidate, tt.last))
		})
	}
}

func TestDistanceTimePolicy_ZeroIntervalDisablesTimeRule(t *testing.T) {
	t0 := time.Unix(0, 0)
	p := DistanceTimePolicy{MinDistance: 100}
	last := &domain.BreadcrumbPoint{Time: t0}
	assert.False(t, p.ShouldRetain(domain.BreadcrumbPoint{Time: t0.Add(24 * time.Hour)}, last))
}

func TestRetainAll(t *testing.T) {
	last := &domain.BreadcrumbPoint{}
	assert.True(t, RetainAll.ShouldRetain(domain.BreadcrumbPoint{}, last))
}
