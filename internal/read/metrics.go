package read

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "transferdesk_cache_lookups_total",
	Help: "Read-through cache lookups by table and result (hit, miss, error).",
}, []string{"table", "result"})

func observeLookup(table, result string) {
	cacheLookups.WithLabelValues(table, result).Inc()
}
