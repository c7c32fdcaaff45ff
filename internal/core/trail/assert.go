package trail

import "fmt"

func assertf(cond bool, format string, args ...any) {
	if debugAssertions && !cond {
		panic(fmt.Sprintf("trail: invariant violated: "+format, args...))
	}
}

// checkTree walks the whole tree; only called when debugAssertions is set.
func checkTree(n *node, capacity int) {
	if n == nil {
		return
	}
	checkNode(n, capacity)
}

func checkNode(n *node, capacity int) {
	if n.height == 0 {
		assertf(len(n.segments) > 0 && len(n.segments) <= capacity, "leaf holds %d segments", len(n.segments))
		for _, s := range n.segments {
			b := s.Bound()
			assertf(n.bound.Contains(b.Min) && n.bound.Contains(b.Max), "leaf bound misses segment %d", s.Seq)
			assertf(s.Seq <= n.maxSeq, "leaf maxSeq %d below segment %d", n.maxSeq, s.Seq)
		}
		return
	}
	assertf(len(n.children) > 0 && len(n.children) <= capacity, "node holds %d children", len(n.children))
	for _, c := range n.children {
		assertf(c.height == n.height-1, "child height %d under node height %d", c.height, n.height)
		assertf(n.bound.Contains(c.bound.Min) && n.bound.Contains(c.bound.Max), "node bound misses child")
		assertf(c.maxSeq <= n.maxSeq, "child maxSeq %d above parent %d", c.maxSeq, n.maxSeq)
		checkNode(c, capacity)
	}
}
