// Package metrics Prometheus 指标，统一注册在默认 registry 上，由 /metrics 暴露
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_page_cache_hits_total",
		Help: "Page cache hits by backend.",
	}, []string{"backend"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_page_cache_misses_total",
		Help: "Page cache misses by backend.",
	}, []string{"backend"})

	ContentCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_content_created_total",
		Help: "Posts, comments, follows and signups written.",
	}, []string{"kind"})
)

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
