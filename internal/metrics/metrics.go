// Package metrics provides Prometheus metrics collection for the dashboard
// client.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// CacheOperationsTotal tracks cache operations by operation and result.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"},
	)

	// CacheEntries tracks the current number of live cache entries.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cache entries",
		},
	)

	// ChannelReconnectsTotal tracks reconnect attempts by endpoint.
	ChannelReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_reconnects_total",
			Help: "Total number of channel reconnect attempts",
		},
		[]string{"endpoint"},
	)

	// ChannelMessagesTotal tracks inbound channel messages by type.
	ChannelMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_messages_total",
			Help: "Total number of inbound channel messages",
		},
		[]string{"type"},
	)

	// ChannelSendsDroppedTotal counts sends attempted while the channel was not open.
	ChannelSendsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_sends_dropped_total",
			Help: "Total number of sends dropped because the channel was not open",
		},
	)

	// APIRequestDuration tracks dashboard API request duration by operation.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Dashboard API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// APIRequestsTotal tracks dashboard API requests by operation and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of dashboard API requests",
		},
		[]string{"operation", "status"},
	)
)

// PrometheusMiddleware returns a Gin middleware that collects HTTP metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
		HTTPRequestTotal.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordCacheOperation records metrics for a cache operation.
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordAPIRequest records metrics for a dashboard API request.
func RecordAPIRequest(operation string, duration time.Duration, status string) {
	APIRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(operation, status).Inc()
}
