package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poe",
		Subsystem: "registry",
		Name:      "operations_total",
		Help:      "Number of registry operations by kind and result",
	}, []string{"op", "result"})

	opLatencyMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poe",
		Subsystem: "registry",
		Name:      "operation_latency_seconds",
		Help:      "Latency of registry operations",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	}, []string{"op"})

	claimsMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poe",
		Subsystem: "registry",
		Name:      "claims",
		Help:      "Number of live claims as of the last count",
	})

	sinkErrorsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "poe",
		Subsystem: "registry",
		Name:      "sink_errors_total",
		Help:      "Number of events the sink failed to accept",
	})
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorName(err)
}
