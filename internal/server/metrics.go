package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are the Prometheus series of the service.
type metrics struct {
	// builds counts processed requests by status (success, error).
	builds *prometheus.CounterVec
	// duration measures clone plus build time.
	duration prometheus.Histogram
	// nodes is the node count of the last successful build.
	nodes prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codegraph",
			Subsystem: "server",
			Name:      "builds_total",
			Help:      "Total processed build requests by status",
		}, []string{"status"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codegraph",
			Subsystem: "server",
			Name:      "build_duration_seconds",
			Help:      "Clone and build latency of a request",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "codegraph",
			Subsystem: "server",
			Name:      "last_build_nodes",
			Help:      "Node count of the last successful build",
		}),
	}
}

func (m *metrics) observe(err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.builds.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}
