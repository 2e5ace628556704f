package middleware

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "memorial"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		// exports fetch up to five images, so the tail runs long
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response body size",
		Buckets:   prometheus.ExponentialBuckets(256, 8, 8),
	}, []string{"route"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served",
	})

	dbPool = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "db",
		Name:      "connections",
		Help:      "Database pool connections by state",
	}, []string{"state"})

	dbWaits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "db",
		Name:      "wait_count",
		Help:      "Total connections waited for, as reported by database/sql",
	})
)

// Metrics records request count, latency and response size per route template.
// Scrapes and health checks are not counted.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/metrics", "/health":
			c.Next()
			return
		}

		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			responseBytes.WithLabelValues(route).Observe(float64(size))
		}
	}
}

// ObserveDBStats publishes a database/sql pool snapshot
func ObserveDBStats(stats sql.DBStats) {
	dbPool.WithLabelValues("open").Set(float64(stats.OpenConnections))
	dbPool.WithLabelValues("in_use").Set(float64(stats.InUse))
	dbPool.WithLabelValues("idle").Set(float64(stats.Idle))
	dbWaits.Set(float64(stats.WaitCount))
}
