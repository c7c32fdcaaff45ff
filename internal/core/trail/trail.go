package trail

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/pkg/geospatial"
)

// Projector maps a geographic coordinate into the space the index works in.
type Projector interface {
	Project(lat, lon float64) orb.Point
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(lat, lon float64) orb.Point

func (f ProjectorFunc) Project(lat, lon float64) orb.Point { return f(lat, lon) }

// Options configures a Trail. Zero fields select defaults.
type Options struct {
	Policy         Policy
	Projector      Projector
	Clock          func() time.Time
	NodeCapacity   int
	MergeThreshold int
}

// DefaultOptions returns the distance/time policy with default thresholds,
// the identity projection and the wall clock.
func DefaultOptions() Options {
	return Options{
		Policy:         DistanceTimePolicy{MinDistance: DefaultMinDistance, MaxInterval: DefaultMaxInterval},
		Projector:      ProjectorFunc(geospatial.Identity),
		Clock:          time.Now,
		NodeCapacity:   DefaultNodeCapacity,
		MergeThreshold: DefaultMergeThreshold,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Policy == nil {
		o.Policy = d.Policy
	}
	if o.Projector == nil {
		o.Projector = d.Projector
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// Receipt reports what happened to a sample. Seq is the new point's
// sequence number, or the last retained one when the policy dropped it.
type Receipt struct {
	Seq      uint64 `json:"seq"`
	Retained bool   `json:"retained"`
	Merged   bool   `json:"-"`
}

// Trail is the breadcrumb trail of one tracking session.
type Trail struct {
	opts Options

	// mu serializes the producer side only. Readers never take it.
	mu        sync.Mutex
	store     *Store
	index     *Index
	last      *domain.BreadcrumbPoint
	lastXY    orb.Point
	extent    orb.Bound
	geoExtent domain.Bounds
	sessionID string
	state     domain.TrailState
	listeners []func(domain.ChangeEvent)

	current atomic.Pointer[Snapshot]
}

// New creates an empty trail.
func New(opts Options) *Trail {
	opts = opts.withDefaults()
	t := &Trail{
		opts:      opts,
		store:     NewStore(1),
		index:     NewIndex(opts.NodeCapacity, opts.MergeThreshold),
		sessionID: uuid.NewString(),
		state:     domain.TrailEmpty,
	}
	t.publishLocked()
	return t
}

// OnChange registers fn to be called after every retained sample and after
// Reset. Listeners run on the producer goroutine, after the new snapshot is
// visible, and must not call back into AddSample or Reset.
func (t *Trail) OnChange(fn func(domain.ChangeEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// AddSample validates a fix, runs it through the policy and appends it.
// A zero ts is replaced with the configured clock. Invalid coordinates
// return an error wrapping domain.ErrInvalidSample and leave the trail as is.
func (t *Trail) AddSample(lat, lon float64, ts time.Time) (Receipt, error) {
	if ts.IsZero() {
		ts = t.opts.Clock()
	}
	if ok, reason := geospatial.ValidCoordinate(lat, lon); !ok {
		return Receipt{}, &domain.InvalidSampleError{Lat: lat, Lon: lon, Reason: reason}
	}

	t.mu.Lock()
	candidate := domain.BreadcrumbPoint{Lat: lat, Lon: lon, Time: ts}
	if !t.opts.Policy.ShouldRetain(candidate, t.last) {
		var seq uint64
		if t.last != nil {
			seq = t.last.Seq
		}
		t.mu.Unlock()
		return Receipt{Seq: seq}, nil
	}

	seq, err := t.store.Append(candidate)
	if err != nil {
		t.mu.Unlock()
		return Receipt{}, err
	}
	candidate.Seq = seq

	xy := t.opts.Projector.Project(lat, lon)
	delta := xy.Bound()
	geoDelta := domain.Bounds{MinLat: lat, MinLon: lon, MaxLat: lat, MaxLon: lon}
	merged := false
	if t.last != nil {
		prev := *t.last
		seg := domain.Segment{
			Seq:  seq,
			From: prev,
			To:   candidate,
			A:    t.lastXY,
			B:    xy,
		}
		delta = seg.Bound()
		geoDelta = extendBounds(geoDelta, prev.Lat, prev.Lon)
		merged = t.index.Insert(seg)
		t.extent = t.extent.Union(delta)
		t.geoExtent = extendBounds(t.geoExtent, lat, lon)
	} else {
		t.extent = delta
		t.geoExtent = geoDelta
	}
	t.last = &candidate
	t.lastXY = xy
	t.state = domain.TrailTracking

	snap := t.publishLocked()
	listeners := t.listeners
	t.mu.Unlock()

	if len(listeners) > 0 {
		extent := snap.geoExtent
		ev := domain.ChangeEvent{
			Kind:      domain.ChangeAppended,
			SessionID: snap.SessionID,
			Seq:       seq,
			Delta:     &geoDelta,
			Extent:    &extent,
			Time:      ts,
		}
		for _, fn := range listeners {
			fn(ev)
		}
	}
	return Receipt{Seq: seq, Retained: true, Merged: merged}, nil
}

// Reset discards every point and the index and starts a new session. The
// Trail stays usable; snapshots taken before Reset remain valid.
func (t *Trail) Reset() {
	t.mu.Lock()
	t.store.Clear()
	t.index = NewIndex(t.opts.NodeCapacity, t.opts.MergeThreshold)
	t.last = nil
	t.extent = orb.Bound{}
	t.geoExtent = domain.Bounds{}
	t.sessionID = uuid.NewString()
	t.state = domain.TrailCleared
	snap := t.publishLocked()
	lastSeq := t.store.NextSeq() - 1
	listeners := t.listeners
	t.mu.Unlock()

	ev := domain.ChangeEvent{
		Kind:      domain.ChangeCleared,
		SessionID: snap.SessionID,
		Seq:       lastSeq,
		Time:      t.opts.Clock(),
	}
	for _, fn := range listeners {
		fn(ev)
	}
}

func (t *Trail) publishLocked() *Snapshot {
	snap := &Snapshot{
		SessionID: t.sessionID,
		State:     t.state,
		points:    t.store.View(),
		index:     t.index.View(),
		extent:    t.extent,
		geoExtent: t.geoExtent,
	}
	if t.last != nil {
		snap.Watermark = t.last.Seq
	}
	t.current.Store(snap)
	return snap
}

// Snapshot returns the latest published snapshot without blocking.
func (t *Trail) Snapshot() *Snapshot {
	return t.current.Load()
}

// VisibleSegments returns the segments intersecting region (index space).
// An empty or cleared trail yields an empty slice.
func (t *Trail) VisibleSegments(region orb.Bound) []domain.Segment {
	return t.Snapshot().Query(region)
}

// VisibleSegmentsSince returns the segments newer than the since watermark
// that intersect region.
func (t *Trail) VisibleSegmentsSince(region orb.Bound, since uint64) []domain.Segment {
	return t.Snapshot().QuerySince(region, since)
}

// TotalExtent returns the index-space rectangle covering the whole trail.
func (t *Trail) TotalExtent() (orb.Bound, bool) {
	return t.Snapshot().Extent()
}

// PointsSince yields the retained points newer than seq.
func (t *Trail) PointsSince(seq uint64) iter.Seq[domain.BreadcrumbPoint] {
	return t.Snapshot().PointsSince(seq)
}

// Count returns the number of retained points in the current session.
func (t *Trail) Count() uint64 {
	return uint64(t.Snapshot().PointCount())
}

// State returns the lifecycle state.
func (t *Trail) State() domain.TrailState {
	return t.Snapshot().State
}

// Project maps a coordinate with the trail's projector, so callers can turn
// a lat/lon viewport into an index-space query rectangle.
func (t *Trail) Project(lat, lon float64) orb.Point {
	return t.opts.Projector.Project(lat, lon)
}

func extendBounds(b domain.Bounds, lat, lon float64) domain.Bounds {
	b.MinLat = min(b.MinLat, lat)
	b.MinLon = min(b.MinLon, lon)
	b.MaxLat = max(b.MaxLat, lat)
	b.MaxLon = max(b.MaxLon, lon)
	return b
}
