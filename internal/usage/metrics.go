package usage

import "github.com/prometheus/client_golang/prometheus"

var droppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "usage",
		Name:      "records_dropped_total",
		Help:      "Usage records dropped under overload or after failed persistence",
	},
)

func init() {
	prometheus.MustRegister(droppedTotal)
}
