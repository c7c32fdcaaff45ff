package trail

import (
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// randomWalk returns n consecutive segments of a random walk in a 100x100 box.
func randomWalk(rng *rand.Rand, n int) []domain.Segment {
	segs := make([]domain.Segment, 0, n)
	prev := orb.Point{rng.Float64() * 100, rng.Float64() * 100}
	for i := 0; i < n; i++ {
		next := orb.Point{prev[0] + rng.Float64()*4 - 2, prev[1] + rng.Float64()*4 - 2}
		segs = append(segs, domain.Segment{Seq: uint64(i + 2), A: prev, B: next})
		prev = next
	}
	return segs
}

func randomRect(rng *rand.Rand) orb.Bound {
	x, y := rng.Float64()*110-5, rng.Float64()*110-5
	w, h := rng.Float64()*30, rng.Float64()*30
	return orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + w, y + h}}
}

func bruteForce(segs []domain.Segment, rect orb.Bound, since uint64) []uint64 {
	var out []uint64
	for _, s := range segs {
		if s.Seq > since && SegmentIntersects(s.A, s.B, rect) {
			out = append(out, s.Seq)
		}
	}
	return out
}

func seqsOf(segs []domain.Segment) []uint64 {
	var out []uint64
	for _, s := range segs {
		out = append(out, s.Seq)
	}
	return out
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	configs := []struct {
		name          string
		nodeCap, tail int
	}{
		{"defaults", 0, 0},
		{"tiny nodes", 2, 3},
		{"tail smaller than node", 8, 5},
		{"tail larger than node", 4, 10},
	}
	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(7, 11))
			segs := randomWalk(rng, 1500)
			ix := NewIndex(cfg.nodeCap, cfg.tail)
			for i, s := range segs {
				ix.Insert(s)
				if i%250 != 0 {
					continue
				}
				view := ix.View()
				for q := 0; q < 20; q++ {
					rect := randomRect(rng)
					assert.Equal(t, bruteForce(segs[:i+1], rect, 0), seqsOf(view.Query(rect)))
				}
			}

			view := ix.View()
			for q := 0; q < 200; q++ {
				rect := randomRect(rng)
				since := uint64(rng.IntN(len(segs)))
				assert.Equal(t, bruteForce(segs, rect, since), seqsOf(view.QuerySince(rect, since)))
			}
		})
	}
}

func TestIndex_BoundCoversEverything(t *testing.T) {
	ix := NewIndex(4, 4)
	_, ok := ix.View().Bound()
	assert.False(t, ok)

	rng := rand.New(rand.NewPCG(1, 2))
	segs := randomWalk(rng, 100)
	for _, s := range segs {
		ix.Insert(s)
	}
	b, ok := ix.View().Bound()
	require.True(t, ok)
	for _, s := range segs {
		assert.True(t, b.Contains(s.A) && b.Contains(s.B))
	}
	assert.Len(t, ix.View().Query(b), len(segs))
}

func TestIndex_StaysBalanced(t *testing.T) {
	ix := NewIndex(4, 4)
	rng := rand.New(rand.NewPCG(3, 4))
	for _, s := range randomWalk(rng, 4096) {
		ix.Insert(s)
	}
	// 4096 segments in full leaves of 4 -> 1024 leaves -> height 5 with fanout 4.
	assert.Equal(t, 5, ix.View().Height())
	assert.Equal(t, uint64(1024), ix.Merges())
	checkAllLeavesAtDepth(t, ix.View().root, ix.View().Height())
}

func checkAllLeavesAtDepth(t *testing.T, n *node, height int) {
	t.Helper()
	if n.height != height {
		t.Fatalf("node at height %d, expected %d", n.height, height)
	}
	for _, c := range n.children {
		checkAllLeavesAtDepth(t, c, height-1)
	}
}

func TestIndex_OldViewsAreNotAffectedByMerges(t *testing.T) {
	ix := NewIndex(2, 2)
	rng := rand.New(rand.NewPCG(5, 6))
	segs := randomWalk(rng, 300)
	world := orb.Bound{Min: orb.Point{-1000, -1000}, Max: orb.Point{1000, 1000}}

	var views []IndexView
	for _, s := range segs {
		ix.Insert(s)
		views = append(views, ix.View())
	}
	for i, v := range views {
		got := seqsOf(v.Query(world))
		require.Len(t, got, i+1)
		assert.Equal(t, uint64(i+2), got[len(got)-1])
	}
}

func TestIndex_DisjointQueryIsEmpty(t *testing.T) {
	ix := NewIndex(0, 0)
	rng := rand.New(rand.NewPCG(8, 9))
	for _, s := range randomWalk(rng, 200) {
		ix.Insert(s)
	}
	far := orb.Bound{Min: orb.Point{5000, 5000}, Max: orb.Point{5001, 5001}}
	got := ix.View().Query(far)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIndex_SegmentsStopEarly(t *testing.T) {
	ix := NewIndex(2, 2)
	rng := rand.New(rand.NewPCG(10, 11))
	for _, s := range randomWalk(rng, 50) {
		ix.Insert(s)
	}
	world := orb.Bound{Min: orb.Point{-1000, -1000}, Max: orb.Point{1000, 1000}}
	n := 0
	for range ix.View().Segments(world, 0) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}
