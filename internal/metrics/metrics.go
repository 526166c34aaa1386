// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests handled by the gateway.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "upstream_requests_total",
		Help:      "Requests forwarded to the backend service, by endpoint and outcome.",
	}, []string{"endpoint", "status"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of backend service calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	guardRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "route_guard_redirects_total",
		Help:      "Redirects issued by the route guard, by target.",
	}, []string{"target"})
)

// ObserveRequest records one handled inbound request
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveUpstream records one backend call. A zero status means the call
// failed before a response arrived.
func ObserveUpstream(endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequests.WithLabelValues(endpoint, label).Inc()
	upstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordRedirect counts a route guard redirect
func RecordRedirect(target string) {
	guardRedirects.WithLabelValues(target).Inc()
}
