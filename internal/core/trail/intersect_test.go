package trail

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestSegmentIntersects(t *testing.T) {
	r := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	tests := []struct {
		name string
		a, b orb.Point
		want bool
	}{
		{"inside", orb.Point{1, 1}, orb.Point{2, 2}, true},
		{"one endpoint inside", orb.Point{5, 5}, orb.Point{20, 20}, true},
		{"crosses without endpoints inside", orb.Point{-5, 5}, orb.Point{15, 5}, true},
		{"diagonal through", orb.Point{-1, 11}, orb.Point{11, -1}, true},
		{"bbox overlaps but line misses corner", orb.Point{9, 12}, orb.Point{12, 9}, false},
		{"endpoint on corner", orb.Point{10, 10}, orb.Point{12, 12}, true},
		{"passes through corner", orb.Point{8, 12}, orb.Point{12, 8}, true},
		{"on boundary edge", orb.Point{-5, 10}, orb.Point{15, 10}, true},
		{"fully left", orb.Point{-5, 0}, orb.Point{-1, 10}, false},
		{"degenerate inside", orb.Point{3, 3}, orb.Point{3, 3}, true},
		{"degenerate outside", orb.Point{30, 3}, orb.Point{30, 3}, false},
		{"vertical outside", orb.Point{11, -5}, orb.Point{11, 15}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentIntersects(tt.a, tt.b, r))
			assert.Equal(t, tt.want, SegmentIntersects(tt.b, tt.a, r), "direction must not matter")
		})
	}
}
