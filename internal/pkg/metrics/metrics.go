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
		Namespace: "mylocation",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mylocation",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mylocation",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Location metrics
	FixesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "fixes",
		Name:      "ingested_total",
		Help:      "Total location fixes accepted",
	}, []string{"source"})

	FixesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "fixes",
		Name:      "rejected_total",
		Help:      "Total location fixes rejected by validation",
	}, []string{"reason"})

	FixDisplacement = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mylocation",
		Subsystem: "fixes",
		Name:      "displacement_meters",
		Help:      "Distance between consecutive fixes of a device",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
	})

	FixAccuracy = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mylocation",
		Subsystem: "fixes",
		Name:      "accuracy_meters",
		Help:      "Reported accuracy radius of ingested fixes",
		Buckets:   prometheus.ExponentialBuckets(1, 3, 10),
	})

	FeedPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mylocation",
		Subsystem: "feeder",
		Name:      "poll_duration_seconds",
		Help:      "Duration of fix feed polling",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"device"})

	FeedPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "feeder",
		Name:      "poll_errors_total",
		Help:      "Total fix feed poll errors",
	}, []string{"device"})

	// Overlay metrics
	OverlayFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "overlay",
		Name:      "frames_total",
		Help:      "Scene changes emitted by overlay sessions, by accuracy region visibility",
	}, []string{"visibility"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mylocation",
		Subsystem: "overlay",
		Name:      "active_sessions",
		Help:      "Current number of overlay sessions",
	})

	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mylocation",
		Subsystem: "overlay",
		Name:      "snapshot_duration_seconds",
		Help:      "Time spent rendering PNG snapshots",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	RetentionPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "retention",
		Name:      "purged_fixes_total",
		Help:      "Total fixes deleted by the retention workflow",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mylocation",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mylocation",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mylocation",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mylocation",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mylocation",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
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

// PoolStat is the subset of pgxpool.Stat the gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the DB gauges.
func UpdateDBPoolMetrics(stat PoolStat) {
	if stat == nil {
		return
	}
	DBPoolConnsAcquired.Set(float64(stat.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(stat.IdleConns()))
	DBPoolConnsOpen.Set(float64(stat.TotalConns()))
}
