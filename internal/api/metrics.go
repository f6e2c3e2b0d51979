package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal counts served requests by route pattern and status.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferdesk_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transferdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// httpRateLimitedTotal counts requests rejected by the per-client limiter.
	httpRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transferdesk_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)
