package writeback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var drainedChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "transferdesk_ride_changes_drained_total",
	Help: "Ride change events processed by the drainer.",
}, []string{"table", "operation", "result"})
