package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	slotsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "dispatch",
			Name:      "slots_in_use",
			Help:      "Inference slots currently held",
		},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "dispatch",
			Name:      "rejections_total",
			Help:      "Requests rejected by the dispatcher",
		},
		[]string{"reason"},
	)

	inferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "dispatch",
			Name:      "inference_duration_seconds",
			Help:      "Wall-clock duration of model generations",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(slotsInUse, rejectionsTotal, inferenceDuration)
}
