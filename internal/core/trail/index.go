package trail

import (
	"iter"
	"slices"

	"github.com/paulmach/orb"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

const (
	DefaultNodeCapacity   = 16
	DefaultMergeThreshold = 64
	minNodeCapacity       = 2
)

// node is an immutable R-tree node. Leaves (height 0) hold segments, other
// nodes hold children one level lower. Once a node is reachable from a
// published view it is never modified; updates copy the path instead.
type node struct {
	bound    orb.Bound
	maxSeq   uint64
	height   int
	children []*node
	segments []domain.Segment
}

func newLeaf(segs []domain.Segment) *node {
	n := &node{segments: segs}
	for i, s := range segs {
		if i == 0 {
			n.bound = s.Bound()
		} else {
			n.bound = n.bound.Union(s.Bound())
		}
		n.maxSeq = max(n.maxSeq, s.Seq)
	}
	return n
}

func newBranch(height int, children ...*node) *node {
	n := &node{height: height, children: children}
	n.refresh()
	return n
}

func (n *node) refresh() {
	for i, c := range n.children {
		if i == 0 {
			n.bound = c.bound
		} else {
			n.bound = n.bound.Union(c.bound)
		}
		n.maxSeq = max(n.maxSeq, c.maxSeq)
	}
}

// withChildren returns a copy of n with the given children.
func (n *node) withChildren(children []*node) *node {
	return newBranch(n.height, children...)
}

// Index is a height-balanced R-tree over trail segments, tuned for
// append-mostly workloads. New segments land in a small tail bucket; when
// the bucket holds MergeThreshold segments it is packed into leaves and
// appended along the right edge of the tree, copying only that path.
//
// Insert must be called from a single goroutine. Views are safe anywhere.
type Index struct {
	root    *node
	tail    []domain.Segment
	bound   orb.Bound
	count   int
	nodeCap int
	mergeAt int
	merges  uint64
}

// NewIndex creates an empty index. Non-positive arguments select defaults.
func NewIndex(nodeCapacity, mergeThreshold int) *Index {
	if nodeCapacity <= 0 {
		nodeCapacity = DefaultNodeCapacity
	}
	nodeCapacity = max(nodeCapacity, minNodeCapacity)
	if mergeThreshold <= 0 {
		mergeThreshold = DefaultMergeThreshold
	}
	return &Index{
		nodeCap: nodeCapacity,
		mergeAt: mergeThreshold,
		tail:    make([]domain.Segment, 0, mergeThreshold),
	}
}

// Insert adds seg and reports whether the tail bucket was merged into the tree.
func (ix *Index) Insert(seg domain.Segment) bool {
	if ix.count == 0 {
		ix.bound = seg.Bound()
	} else {
		ix.bound = ix.bound.Union(seg.Bound())
	}
	ix.count++
	ix.tail = append(ix.tail, seg)
	if len(ix.tail) < ix.mergeAt {
		return false
	}
	ix.merge()
	return true
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int { return ix.count }

// Merges returns how many tail merges happened.
func (ix *Index) Merges() uint64 { return ix.merges }

func (ix *Index) merge() {
	batch := ix.tail
	for start := 0; start < len(batch); start += ix.nodeCap {
		end := min(start+ix.nodeCap, len(batch))
		// Leaves alias the old tail array, which is never written again
		// because the tail gets a fresh array below.
		ix.root = ix.appendLeaf(ix.root, newLeaf(batch[start:end:end]))
	}
	ix.tail = make([]domain.Segment, 0, ix.mergeAt)
	ix.merges++
	if debugAssertions {
		checkTree(ix.root, ix.nodeCap)
	}
}

func (ix *Index) appendLeaf(root, leaf *node) *node {
	if root == nil {
		return leaf
	}
	if root.height == leaf.height {
		return newBranch(root.height+1, root, leaf)
	}
	updated, split := ix.appendChild(root, leaf)
	if split == nil {
		return updated
	}
	return newBranch(updated.height+1, updated, split)
}

// appendChild places child on the right edge below n. It returns the copy
// of n and, when n was full, a new right sibling at n's height.
func (ix *Index) appendChild(n, child *node) (*node, *node) {
	if n.height == child.height+1 {
		if len(n.children) < ix.nodeCap {
			return n.withChildren(append(slices.Clone(n.children), child)), nil
		}
		return n, newBranch(n.height, child)
	}

	last := len(n.children) - 1
	updated, split := ix.appendChild(n.children[last], child)
	children := slices.Clone(n.children)
	children[last] = updated
	if split == nil {
		return n.withChildren(children), nil
	}
	if len(children) < ix.nodeCap {
		return n.withChildren(append(children, split)), nil
	}
	return n.withChildren(children), newBranch(n.height, split)
}

// View returns an immutable view of the index.
func (ix *Index) View() IndexView {
	n := len(ix.tail)
	return IndexView{
		root:  ix.root,
		tail:  ix.tail[:n:n],
		bound: ix.bound,
		count: ix.count,
	}
}

// IndexView is a point-in-time view of an Index.
type IndexView struct {
	root  *node
	tail  []domain.Segment
	bound orb.Bound
	count int
}

// Len returns the number of segments in the view.
func (v IndexView) Len() int { return v.count }

// Bound returns the bound covering every segment. ok is false when empty.
func (v IndexView) Bound() (orb.Bound, bool) {
	return v.bound, v.count > 0
}

// Height returns the tree height; -1 when nothing was merged yet.
func (v IndexView) Height() int {
	if v.root == nil {
		return -1
	}
	return v.root.height
}

// Segments yields every segment with Seq > since that intersects rect, in
// sequence order. Stopping early has no side effects.
func (v IndexView) Segments(rect orb.Bound, since uint64) iter.Seq[domain.Segment] {
	return func(yield func(domain.Segment) bool) {
		if v.root != nil && !v.root.visit(rect, since, yield) {
			return
		}
		for _, s := range v.tail {
			if s.Seq > since && SegmentIntersects(s.A, s.B, rect) {
				if !yield(s) {
					return
				}
			}
		}
	}
}

// Query returns every segment intersecting rect.
func (v IndexView) Query(rect orb.Bound) []domain.Segment {
	return v.QuerySince(rect, 0)
}

// QuerySince returns segments newer than the since watermark that intersect rect.
func (v IndexView) QuerySince(rect orb.Bound, since uint64) []domain.Segment {
	out := []domain.Segment{}
	for s := range v.Segments(rect, since) {
		out = append(out, s)
	}
	return out
}

func (n *node) visit(rect orb.Bound, since uint64, yield func(domain.Segment) bool) bool {
	if n.maxSeq <= since || !n.bound.Intersects(rect) {
		return true
	}
	if n.height == 0 {
		for _, s := range n.segments {
			if s.Seq > since && SegmentIntersects(s.A, s.B, rect) {
				if !yield(s) {
					return false
				}
			}
		}
		return true
	}
	for _, c := range n.children {
		if !c.visit(rect, since, yield) {
			return false
		}
	}
	return true
}
