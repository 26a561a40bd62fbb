package api

import (
	"strconv"
	"time"

	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/metrics"

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMetrics registers the request, session and target state collectors.
func newMetrics(registry *prometheus.Registry, sessions *SessionTable, device *target.Device) *metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtconfigd",
			Name:      "http_requests_total",
			Help:      "API requests by route, method and HTTP status.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rtconfigd",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	registry.MustRegister(
		m.requests,
		m.duration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rtconfigd",
			Name:      "sessions_open",
			Help:      "Open configuration sessions.",
		}, func() float64 { return float64(sessions.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rtconfigd",
			Name:      "target_running",
			Help:      "1 while the target is running, 0 while it restarts or formats.",
		}, func() float64 {
			if device.State() == target.StateRunning {
				return 1
			}
			return 0
		}),
	)
	return m
}

// middleware records every request once its handler returns.
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
