package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	healthState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "supervisor",
			Name:      "health_state",
			Help:      "Current health state of the model process (1 for the active state)",
		},
		[]string{"state"},
	)

	restartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "supervisor",
			Name:      "restarts_total",
			Help:      "Total automatic restarts of the model process",
		},
	)

	probeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "supervisor",
			Name:      "probe_failures_total",
			Help:      "Total failed health probes, including dispatcher-reported errors",
		},
	)
)

var allHealthStates = []Health{
	HealthStarting, HealthReady, HealthDegraded, HealthCrashed,
	HealthRestarting, HealthUnrecoverable, HealthShuttingDown,
}

func init() {
	prometheus.MustRegister(healthState, restartsTotal, probeFailures)
}

func setHealthMetric(h Health) {
	for _, st := range allHealthStates {
		v := 0.0
		if st == h {
			v = 1.0
		}
		healthState.WithLabelValues(string(st)).Set(v)
	}
}
