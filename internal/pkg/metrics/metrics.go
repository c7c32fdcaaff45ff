package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "breadcrumbs",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "breadcrumbs",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Trail metrics
	SamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "samples_total",
		Help:      "Position samples received, by outcome (retained, dropped, rejected)",
	}, []string{"outcome"})

	TrailPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "points",
		Help:      "Retained breadcrumbs in the current session",
	})

	TrailSegments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "segments",
		Help:      "Indexed segments in the current session",
	})

	IndexMerges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "index_merges_total",
		Help:      "Tail bucket merges into the segment tree",
	})

	TrailResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "resets_total",
		Help:      "Trail resets (new tracking sessions)",
	})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "query_duration_seconds",
		Help:      "Visible-segment query latency",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"kind"})

	QuerySegments = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "query_segments",
		Help:      "Segments returned per visible-segment query",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	FeedPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "source",
		Name:      "poll_errors_total",
		Help:      "Errors while polling a sample source",
	}, []string{"source"})

	ChangeEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "trail",
		Name:      "change_events_dropped_total",
		Help:      "Change events discarded because the publish queue was full",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "breadcrumbs",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "breadcrumbs",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
