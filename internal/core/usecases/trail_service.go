package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/core/ports"
	"github.com/samirrijal/breadcrumbs/internal/core/trail"
	"github.com/samirrijal/breadcrumbs/internal/pkg/geospatial"
	"github.com/samirrijal/breadcrumbs/internal/pkg/metrics"
	"github.com/samirrijal/breadcrumbs/internal/pkg/telemetry"
)

const (
	defaultPointsLimit = 500
	maxPointsLimit     = 5000
	publishTimeout     = 2 * time.Second
	changeQueueSize    = 1024
)

// SegmentPage is the answer to a visible-segments query.
type SegmentPage struct {
	SessionID string           `json:"session_id"`
	Watermark uint64           `json:"watermark"`
	Since     uint64           `json:"since"`
	Segments  []domain.Segment `json:"segments"`
}

// PointPage is one page of retained points in sequence order. Next is the
// cursor for the following page.
type PointPage struct {
	SessionID string                   `json:"session_id"`
	Watermark uint64                   `json:"watermark"`
	Points    []domain.BreadcrumbPoint `json:"points"`
	Next      uint64                   `json:"next"`
	HasMore   bool                     `json:"has_more"`
}

// TrailStatus summarises the current snapshot.
type TrailStatus struct {
	SessionID   string            `json:"session_id"`
	State       domain.TrailState `json:"state"`
	Watermark   uint64            `json:"watermark"`
	Points      int               `json:"points"`
	Segments    int               `json:"segments"`
	IndexHeight int               `json:"index_height"`
}

// TrailService exposes the breadcrumb trail to the transport adapters.
type TrailService struct {
	trail    *trail.Trail
	events   ports.EventPublisher
	cache    ports.CacheService
	cacheTTL int

	// Change events go through a bounded queue drained by one goroutine,
	// so a slow broker never stalls AddSample. Overflow is dropped.
	queue     chan domain.ChangeEvent
	stop      chan struct{}
	stopOnce  sync.Once
	drained   sync.WaitGroup
	dropped   atomic.Uint64
	published atomic.Uint64
}

// NewTrailService wires a trail to an optional event publisher and an
// optional response cache. A nil publisher or cache disables that feature.
// Call Close to flush pending change events.
func NewTrailService(t *trail.Trail, events ports.EventPublisher, cache ports.CacheService, cacheTTL int) *TrailService {
	s := &TrailService{
		trail:    t,
		events:   events,
		cache:    cache,
		cacheTTL: cacheTTL,
		stop:     make(chan struct{}),
	}
	if events != nil {
		s.queue = make(chan domain.ChangeEvent, changeQueueSize)
		s.drained.Add(1)
		go s.publishLoop()
	}
	t.OnChange(s.onChange)
	return s
}

// Close stops the change publisher after sending what is already queued.
// Events produced after Close are dropped.
func (s *TrailService) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.drained.Wait()
}

// DroppedEvents returns how many change events were discarded because the
// queue was full or the service was closed.
func (s *TrailService) DroppedEvents() uint64 { return s.dropped.Load() }

// PublishedEvents returns how many change events reached the publisher.
func (s *TrailService) PublishedEvents() uint64 { return s.published.Load() }

// Trail returns the underlying trail.
func (s *TrailService) Trail() *trail.Trail { return s.trail }

func (s *TrailService) onChange(ev domain.ChangeEvent) {
	snap := s.trail.Snapshot()
	metrics.TrailPoints.Set(float64(snap.PointCount()))
	metrics.TrailSegments.Set(float64(snap.SegmentCount()))

	if s.queue == nil {
		return
	}
	select {
	case <-s.stop:
		s.drop()
		return
	default:
	}
	select {
	case s.queue <- ev:
	default:
		s.drop()
	}
}

func (s *TrailService) drop() {
	s.dropped.Add(1)
	metrics.ChangeEventsDropped.Inc()
}

func (s *TrailService) publishLoop() {
	defer s.drained.Done()
	for {
		select {
		case ev := <-s.queue:
			s.publish(ev)
		case <-s.stop:
			for {
				select {
				case ev := <-s.queue:
					s.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *TrailService) publish(ev domain.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	s.published.Add(1)
	if err := s.events.PublishTrailChange(ctx, &ev); err != nil {
		slog.Warn("publish trail change", "session", ev.SessionID, "seq", ev.Seq, "error", err)
	}
}

// AddSample feeds one fix into the trail.
func (s *TrailService) AddSample(ctx context.Context, sample domain.Sample) (trail.Receipt, error) {
	_, span := telemetry.Tracer().Start(ctx, "trail.AddSample", trace.WithAttributes(
		attribute.Float64("sample.lat", sample.Lat),
		attribute.Float64("sample.lon", sample.Lon),
		attribute.String("sample.source", sample.SourceID),
	))
	defer span.End()

	receipt, err := s.trail.AddSample(sample.Lat, sample.Lon, sample.Time)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSample) {
			metrics.SamplesTotal.WithLabelValues("rejected").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return receipt, err
	}

	span.SetAttributes(
		attribute.Int64("trail.seq", int64(receipt.Seq)),
		attribute.Bool("trail.retained", receipt.Retained),
	)
	if receipt.Retained {
		metrics.SamplesTotal.WithLabelValues("retained").Inc()
	} else {
		metrics.SamplesTotal.WithLabelValues("dropped").Inc()
	}
	if receipt.Merged {
		metrics.IndexMerges.Inc()
	}
	return receipt, nil
}

// HandleSample is the subscriber callback. Invalid fixes are logged and
// acknowledged so the broker does not redeliver them.
func (s *TrailService) HandleSample(ctx context.Context, sample *domain.Sample) error {
	_, err := s.AddSample(ctx, *sample)
	if errors.Is(err, domain.ErrInvalidSample) {
		slog.Warn("discarding invalid sample", "source", sample.SourceID, "error", err)
		return nil
	}
	return err
}

// VisibleSegments returns the segments intersecting the lat/lon viewport
// that are newer than since. since = 0 returns all of them.
func (s *TrailService) VisibleSegments(ctx context.Context, view domain.Bounds, since uint64) (*SegmentPage, error) {
	if !finiteBounds(view) || !view.Valid() {
		return nil, fmt.Errorf("%w: %+v", domain.ErrInvalidBounds, view)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "trail.VisibleSegments")
	defer span.End()

	snap := s.trail.Snapshot()
	kind := "full"
	if since > 0 {
		kind = "since"
	}

	cacheKey := segmentsCacheKey(snap.SessionID, snap.Watermark, since, view)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page SegmentPage
			if err := json.Unmarshal(data, &page); err == nil {
				metrics.CacheHits.WithLabelValues("segments").Inc()
				return &page, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("segments").Inc()
	}

	start := time.Now()
	rect := s.projectBounds(view)
	segs := snap.QuerySince(rect, since)
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.QuerySegments.Observe(float64(len(segs)))
	span.SetAttributes(
		attribute.Int("trail.segments", len(segs)),
		attribute.Int64("trail.watermark", int64(snap.Watermark)),
	)

	page := &SegmentPage{
		SessionID: snap.SessionID,
		Watermark: snap.Watermark,
		Since:     since,
		Segments:  segs,
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if data, err := json.Marshal(page); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return page, nil
}

// SegmentsNear is VisibleSegments for a square viewport of radiusMeters
// around a point.
func (s *TrailService) SegmentsNear(ctx context.Context, center domain.GeoPoint, radiusMeters float64, since uint64) (*SegmentPage, error) {
	if !(radiusMeters > 0) || math.IsInf(radiusMeters, 0) {
		return nil, fmt.Errorf("%w: radius must be a positive number", domain.ErrInvalidArgument)
	}
	if ok, reason := geospatial.ValidCoordinate(center.Lat, center.Lon); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidBounds, reason)
	}
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(center.Lat, center.Lon, radiusMeters)
	return s.VisibleSegments(ctx, domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}, since)
}

func (s *TrailService) projectBounds(b domain.Bounds) orb.Bound {
	lo := s.trail.Project(b.MinLat, b.MinLon)
	hi := s.trail.Project(b.MaxLat, b.MaxLon)
	return lo.Bound().Extend(hi)
}

// Extent returns the lat/lon rectangle covering the trail. ok is false for
// an empty or cleared trail.
func (s *TrailService) Extent(ctx context.Context) (domain.Bounds, bool) {
	return s.trail.Snapshot().GeoExtent()
}

// Points returns up to limit retained points with a sequence number above
// since.
func (s *TrailService) Points(ctx context.Context, since uint64, limit int) (*PointPage, error) {
	if limit <= 0 {
		limit = defaultPointsLimit
	}
	if limit > maxPointsLimit {
		limit = maxPointsLimit
	}

	snap := s.trail.Snapshot()
	page := &PointPage{
		SessionID: snap.SessionID,
		Watermark: snap.Watermark,
		Points:    make([]domain.BreadcrumbPoint, 0, min(limit, snap.PointCount())),
		Next:      since,
	}
	for p := range snap.PointsSince(since) {
		if len(page.Points) == limit {
			page.HasMore = true
			break
		}
		page.Points = append(page.Points, p)
		page.Next = p.Seq
	}
	return page, nil
}

// OverviewPath returns the whole trail as a polyline simplified with
// Douglas-Peucker. tolerance is in degrees; 0 returns every point.
func (s *TrailService) OverviewPath(ctx context.Context, tolerance float64) ([]domain.GeoPoint, error) {
	if tolerance < 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return nil, fmt.Errorf("%w: tolerance must be a non-negative number", domain.ErrInvalidArgument)
	}

	points := s.trail.Snapshot().Points()
	line := make(orb.LineString, 0, len(points))
	for _, p := range points {
		line = append(line, orb.Point{p.Lon, p.Lat})
	}
	if tolerance > 0 && len(line) > 2 {
		line = simplify.DouglasPeucker(tolerance).LineString(line)
	}

	out := make([]domain.GeoPoint, len(line))
	for i, p := range line {
		out[i] = domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
	}
	return out, nil
}

// Reset clears the trail and starts a new session.
// Cached pages of the old session are dropped.
func (s *TrailService) Reset(ctx context.Context) TrailStatus {
	old := s.trail.Snapshot().SessionID
	s.trail.Reset()
	metrics.TrailResets.Inc()
	if s.cache != nil {
		if err := s.cache.DeletePrefix(ctx, segmentsKeyPrefix(old)); err != nil {
			slog.Warn("failed to drop cached segments", "session", old, "error", err)
		}
	}
	slog.Info("trail reset", "old_session", old, "session", s.trail.Snapshot().SessionID)
	return s.Status(ctx)
}

func segmentsKeyPrefix(session string) string {
	return "trail:segments:" + session + ":"
}

// segmentsCacheKey spells the viewport corners with full precision so two
// distinct rectangles never share a cached page.
func segmentsCacheKey(session string, watermark, since uint64, view domain.Bounds) string {
	var b strings.Builder
	b.WriteString(segmentsKeyPrefix(session))
	b.WriteString(strconv.FormatUint(watermark, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(since, 10))
	for _, v := range []float64{view.MinLat, view.MinLon, view.MaxLat, view.MaxLon} {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// Status describes the current snapshot.
func (s *TrailService) Status(ctx context.Context) TrailStatus {
	snap := s.trail.Snapshot()
	return TrailStatus{
		SessionID:   snap.SessionID,
		State:       snap.State,
		Watermark:   snap.Watermark,
		Points:      snap.PointCount(),
		Segments:    snap.SegmentCount(),
		IndexHeight: snap.IndexHeight(),
	}
}

func finiteBounds(b domain.Bounds) bool {
	for _, v := range []float64{b.MinLat, b.MinLon, b.MaxLat, b.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
