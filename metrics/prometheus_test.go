package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordCycleDuration(250 * time.Millisecond)
	c.RecordOperationApplied("kit")
	c.RecordOperationApplied("kit")
	c.RecordOperationFailed("vehicle")
	c.SetPendingOperations(3)
	c.SetFailedOperations(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["opqueue_sync_cycle_duration_seconds"])
	assert.True(t, names["opqueue_operations_applied_total"])
	assert.True(t, names["opqueue_operations_failed_total"])
	assert.True(t, names["opqueue_pending_operations"])
	assert.True(t, names["opqueue_failed_operations"])
}

func TestNewPrometheusCollectorDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	_, err = NewPrometheusCollector(reg)
	assert.Error(t, err)
}
