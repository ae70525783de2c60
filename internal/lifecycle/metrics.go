package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shairing_lifecycle_transitions_total",
		Help: "Lifecycle transition attempts by event and outcome.",
	},
	[]string{"event", "outcome"},
)

func recordTransition(event Event, outcome string) {
	transitionsTotal.WithLabelValues(string(event), outcome).Inc()
}
