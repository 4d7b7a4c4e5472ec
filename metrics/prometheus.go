package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector using prometheus instruments.
type PrometheusCollector struct {
	cycleDuration prometheus.Histogram
	opsApplied    *prometheus.CounterVec
	opsFailed     *prometheus.CounterVec
	pendingOps    prometheus.Gauge
	failedOps     prometheus.Gauge
}

// NewPrometheusCollector builds a collector and registers its instruments
// with the given registerer. Pass prometheus.DefaultRegisterer for the
// process-wide registry.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opqueue_sync_cycle_duration_seconds",
			Help:    "Duration of sync drain cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		opsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opqueue_operations_applied_total",
			Help: "Operations successfully applied to the remote store.",
		}, []string{"entity_type"}),
		opsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opqueue_operations_failed_total",
			Help: "Apply attempts that failed.",
		}, []string{"entity_type"}),
		pendingOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opqueue_pending_operations",
			Help: "Operations currently waiting in the pending pool.",
		}),
		failedOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opqueue_failed_operations",
			Help: "Operations in the permanently-failed pool.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.cycleDuration, c.opsApplied, c.opsFailed, c.pendingOps, c.failedOps,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *PrometheusCollector) RecordCycleDuration(duration time.Duration) {
	c.cycleDuration.Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordOperationApplied(entityType string) {
	c.opsApplied.WithLabelValues(entityType).Inc()
}

func (c *PrometheusCollector) RecordOperationFailed(entityType string) {
	c.opsFailed.WithLabelValues(entityType).Inc()
}

func (c *PrometheusCollector) SetPendingOperations(n int) {
	c.pendingOps.Set(float64(n))
}

func (c *PrometheusCollector) SetFailedOperations(n int) {
	c.failedOps.Set(float64(n))
}
