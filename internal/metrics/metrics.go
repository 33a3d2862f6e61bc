// Package metrics provides Prometheus instrumentation for the AgentPayments gate.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentpayments",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentpayments",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GateDecisionsTotal counts gate classifier outcomes.
	//
	// outcome is one of: passthrough, public, agent_402_new, agent_402_unpaid,
	// agent_403, agent_ok, browser_challenge, browser_cookie_ok,
	// browser_verify_ok, browser_verify_fail, rate_limited, server_error.
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentpayments",
			Name:      "gate_decisions_total",
			Help:      "Total gate decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// VerifyCallDuration observes the latency of outbound calls to the
	// verify service's /verify endpoint.
	VerifyCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agentpayments",
			Name:      "verify_call_duration_seconds",
			Help:      "Duration of outbound verify-service /verify calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PaymentCacheSize tracks the current number of entries in the payment cache.
	PaymentCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentpayments",
		Name:      "payment_cache_size",
		Help:      "Current number of entries in the payment verification cache.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GateDecisionsTotal,
		VerifyCallDuration,
		PaymentCacheSize,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
