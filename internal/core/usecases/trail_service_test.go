package usecases_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/core/ports"
	"github.com/samirrijal/breadcrumbs/internal/core/trail"
	"github.com/samirrijal/breadcrumbs/internal/core/usecases"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	changes []domain.ChangeEvent
	err     error

	// block, when set, holds every publish until it is closed or the
	// publish context expires, like an unreachable broker.
	block chan struct{}
}

func (m *mockPublisher) PublishSample(ctx context.Context, s *domain.Sample) error { return nil }

func (m *mockPublisher) PublishTrailChange(ctx context.Context, ev *domain.ChangeEvent) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, *ev)
	return m.err
}

func (m *mockPublisher) received() []domain.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChangeEvent(nil), m.changes...)
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	gets int
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.gets++
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCache) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

// --- Helpers ---

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newService(pub *mockPublisher, cache *mockCache) *usecases.TrailService {
	opts := trail.DefaultOptions()
	opts.Policy = trail.RetainAll
	var p ports.EventPublisher
	if pub != nil {
		p = pub
	}
	if cache != nil {
		return usecases.NewTrailService(trail.New(opts), p, cache, 30)
	}
	return usecases.NewTrailService(trail.New(opts), p, nil, 0)
}

func walk(t *testing.T, svc *usecases.TrailService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := domain.Sample{Lat: 43.26 + float64(i)*0.001, Lon: -2.93, Time: t0.Add(time.Duration(i) * time.Second)}
		if _, err := svc.AddSample(context.Background(), s); err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
	}
}

// --- Tests ---

func TestTrailService_AddSample_PublishesChanges(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil)

	walk(t, svc, 3)
	svc.Close()

	changes := pub.received()
	if len(changes) != 3 {
		t.Fatalf("expected 3 change events, got %d", len(changes))
	}
	last := changes[2]
	if last.Kind != domain.ChangeAppended || last.Seq != 3 {
		t.Errorf("unexpected last event: %+v", last)
	}
	if last.Extent == nil || last.Extent.MaxLat < 43.262 {
		t.Errorf("expected extent to cover the walk, got %+v", last.Extent)
	}
}

func TestTrailService_AddSample_PublisherErrorDoesNotFail(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	svc := newService(pub, nil)
	defer svc.Close()

	r, err := svc.AddSample(context.Background(), domain.Sample{Lat: 1, Lon: 1, Time: t0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Retained || r.Seq != 1 {
		t.Errorf("expected retained seq 1, got %+v", r)
	}
}

func TestTrailService_AddSample_DoesNotWaitForPublisher(t *testing.T) {
	pub := &mockPublisher{block: make(chan struct{})}
	svc := newService(pub, nil)

	start := time.Now()
	walk(t, svc, 3)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("AddSample waited on the broker: %v for 3 samples", elapsed)
	}

	close(pub.block)
	svc.Close()
	if got := len(pub.received()); got != 3 {
		t.Errorf("expected 3 change events after the broker recovered, got %d", got)
	}
}

func TestTrailService_AddSample_DropsChangesWhenQueueFull(t *testing.T) {
	pub := &mockPublisher{block: make(chan struct{})}
	svc := newService(pub, nil)

	const n = 1100
	walk(t, svc, n)
	if svc.DroppedEvents() == 0 {
		t.Fatal("expected overflow to be dropped while the broker is stuck")
	}
	if got := svc.Status(context.Background()).Points; got != n {
		t.Errorf("expected every sample retained regardless of the broker, got %d", got)
	}

	close(pub.block)
	svc.Close()
	if total := svc.PublishedEvents() + svc.DroppedEvents(); total != n {
		t.Errorf("published %d + dropped %d != %d", svc.PublishedEvents(), svc.DroppedEvents(), n)
	}
	if got := uint64(len(pub.received())); got != svc.PublishedEvents() {
		t.Errorf("publisher saw %d events, service reports %d", got, svc.PublishedEvents())
	}
}

func TestTrailService_AddSample_Invalid(t *testing.T) {
	svc := newService(nil, nil)

	_, err := svc.AddSample(context.Background(), domain.Sample{Lat: 91, Lon: 0, Time: t0})
	if !errors.Is(err, domain.ErrInvalidSample) {
		t.Fatalf("expected ErrInvalidSample, got %v", err)
	}
	if svc.Status(context.Background()).Points != 0 {
		t.Error("invalid sample must not be stored")
	}
}

func TestTrailService_HandleSample_SwallowsInvalid(t *testing.T) {
	svc := newService(nil, nil)

	if err := svc.HandleSample(context.Background(), &domain.Sample{Lat: math.NaN(), Lon: 0}); err != nil {
		t.Errorf("expected nil for invalid sample, got %v", err)
	}
	if err := svc.HandleSample(context.Background(), &domain.Sample{Lat: 10, Lon: 10, Time: t0}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := svc.Status(context.Background()).Points; got != 1 {
		t.Errorf("expected 1 point, got %d", got)
	}
}

func TestTrailService_VisibleSegments(t *testing.T) {
	svc := newService(nil, nil)
	walk(t, svc, 10)

	view := domain.Bounds{MinLat: 43.2595, MinLon: -2.94, MaxLat: 43.2625, MaxLon: -2.92}
	page, err := svc.VisibleSegments(context.Background(), view, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Points 1..3 (lat 43.260..43.262) are inside; segments 2,3 and 4 touch it.
	if len(page.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(page.Segments))
	}
	if page.Watermark != 10 {
		t.Errorf("expected watermark 10, got %d", page.Watermark)
	}

	page, err = svc.VisibleSegments(context.Background(), view, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Segments) != 1 || page.Segments[0].Seq != 4 {
		t.Errorf("expected only segment 4 after watermark 3, got %+v", page.Segments)
	}
}

func TestTrailService_VisibleSegments_InvalidBounds(t *testing.T) {
	svc := newService(nil, nil)

	cases := []domain.Bounds{
		{MinLat: 10, MinLon: 0, MaxLat: 5, MaxLon: 1},
		{MinLat: math.NaN(), MinLon: 0, MaxLat: 5, MaxLon: 1},
		{MinLat: 0, MinLon: math.Inf(-1), MaxLat: 5, MaxLon: 1},
	}
	for _, b := range cases {
		if _, err := svc.VisibleSegments(context.Background(), b, 0); !errors.Is(err, domain.ErrInvalidBounds) {
			t.Errorf("bounds %+v: expected ErrInvalidBounds, got %v", b, err)
		}
	}
}

func TestTrailService_VisibleSegments_CacheKeyedByWatermark(t *testing.T) {
	cache := newMockCache()
	svc := newService(nil, cache)
	walk(t, svc, 4)

	view := domain.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	first, _ := svc.VisibleSegments(context.Background(), view, 0)
	second, _ := svc.VisibleSegments(context.Background(), view, 0)
	if cache.sets != 1 {
		t.Errorf("expected one cache fill, got %d", cache.sets)
	}
	if len(first.Segments) != len(second.Segments) {
		t.Errorf("cached page differs: %d vs %d", len(first.Segments), len(second.Segments))
	}

	walk(t, svc, 1)
	third, _ := svc.VisibleSegments(context.Background(), view, 0)
	if cache.sets != 2 {
		t.Errorf("expected a new cache entry after the trail grew, got %d sets", cache.sets)
	}
	if third.Watermark != 5 {
		t.Errorf("expected watermark 5, got %d", third.Watermark)
	}
}

func TestTrailService_VisibleSegments_CacheKeepsNearbyViewportsApart(t *testing.T) {
	cache := newMockCache()
	svc := newService(nil, cache)
	for i, lat := range []float64{0, 1} {
		if _, err := svc.AddSample(context.Background(), domain.Sample{Lat: lat, Lon: 0, Time: t0.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
	}

	// Both viewports print the same with six decimals; only the second
	// touches the segment on lon=0.
	disjoint := domain.Bounds{MinLat: -1, MinLon: 0.0000004, MaxLat: 2, MaxLon: 1}
	touching := domain.Bounds{MinLat: -1, MinLon: 0, MaxLat: 2, MaxLon: 1}

	page, err := svc.VisibleSegments(context.Background(), disjoint, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Segments) != 0 {
		t.Fatalf("expected no segments right of lon=0, got %d", len(page.Segments))
	}

	page, err = svc.VisibleSegments(context.Background(), touching, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Segments) != 1 {
		t.Errorf("expected the touching segment, got %d", len(page.Segments))
	}
	if cache.sets != 2 {
		t.Errorf("expected two distinct cache entries, got %d sets", cache.sets)
	}
}

func TestTrailService_Points_Paginates(t *testing.T) {
	svc := newService(nil, nil)
	walk(t, svc, 7)

	page, _ := svc.Points(context.Background(), 0, 3)
	if len(page.Points) != 3 || !page.HasMore || page.Next != 3 {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page, _ = svc.Points(context.Background(), page.Next, 3)
	if page.Points[0].Seq != 4 || page.Next != 6 || !page.HasMore {
		t.Fatalf("unexpected second page: %+v", page)
	}
	page, _ = svc.Points(context.Background(), page.Next, 3)
	if len(page.Points) != 1 || page.HasMore {
		t.Fatalf("unexpected last page: %+v", page)
	}
}

func TestTrailService_OverviewPath(t *testing.T) {
	svc := newService(nil, nil)
	walk(t, svc, 20) // a straight north-bound line

	full, err := svc.OverviewPath(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(full) != 20 {
		t.Errorf("expected 20 points without simplification, got %d", len(full))
	}

	simple, err := svc.OverviewPath(context.Background(), 0.0001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(simple) != 2 {
		t.Errorf("expected a straight line to reduce to its endpoints, got %d points", len(simple))
	}

	if _, err := svc.OverviewPath(context.Background(), -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTrailService_Reset(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(pub, nil)
	walk(t, svc, 3)
	before := svc.Status(context.Background())

	st := svc.Reset(context.Background())
	if st.State != domain.TrailCleared || st.Points != 0 || st.Segments != 0 {
		t.Errorf("unexpected status after reset: %+v", st)
	}
	if st.SessionID == before.SessionID {
		t.Error("expected a new session after reset")
	}
	if _, ok := svc.Extent(context.Background()); ok {
		t.Error("expected no extent after reset")
	}
	svc.Close()
	changes := pub.received()
	last := changes[len(changes)-1]
	if last.Kind != domain.ChangeCleared {
		t.Errorf("expected cleared event, got %s", last.Kind)
	}
}

func TestTrailService_Reset_DropsCachedPages(t *testing.T) {
	cache := newMockCache()
	svc := newService(nil, cache)
	walk(t, svc, 4)

	view := domain.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	if _, err := svc.VisibleSegments(context.Background(), view, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.data) != 1 {
		t.Fatalf("expected one cached page, got %d", len(cache.data))
	}

	svc.Reset(context.Background())
	if len(cache.data) != 0 {
		t.Errorf("expected cached pages of the old session to be dropped, %d left", len(cache.data))
	}
}
