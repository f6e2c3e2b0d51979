package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queryDuration tracks store round-trip latency by statement kind.
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transferdesk_store_query_duration_seconds",
			Help:    "Latency of store round-trips by statement kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// queryErrorsTotal counts failed store round-trips, split by availability.
	queryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferdesk_store_query_errors_total",
			Help: "Total number of failed store round-trips",
		},
		[]string{"kind", "unavailable"},
	)
)

func observeQuery(kind string, start time.Time, err error) {
	queryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		unavailable := "false"
		if IsUnavailable(err) {
			unavailable = "true"
		}
		queryErrorsTotal.WithLabelValues(kind, unavailable).Inc()
	}
}
