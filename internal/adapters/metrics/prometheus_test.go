package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/tracebeacon/internal/ports"
)

var _ ports.SenderMetrics = (*Metrics)(nil)

// counterValue gathers the registry and returns the counter named name whose
// labels include every pair in labels.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			matched := 0
			for _, lp := range metric.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_Sender(t *testing.T) {
	m := New()

	m.BatchSent(3)
	m.BatchSent(2)
	m.EventsDropped(4)
	m.SenderDisabled()

	assert.Equal(t, float64(2), counterValue(t, m, "tracebeacon_sender_batches_total", nil))
	assert.Equal(t, float64(5), counterValue(t, m, "tracebeacon_sender_events_total", map[string]string{"outcome": "sent"}))
	assert.Equal(t, float64(4), counterValue(t, m, "tracebeacon_sender_events_total", map[string]string{"outcome": "dropped"}))
	assert.Equal(t, float64(1), counterValue(t, m, "tracebeacon_sender_disabled_total", nil))
}

func TestMetrics_Collector(t *testing.T) {
	m := New()

	m.BatchReceived("POST", []string{"action", "load", "load", ""})
	m.Rejected("decode")

	assert.Equal(t, float64(1), counterValue(t, m, "tracebeacon_collector_batches_total", map[string]string{"method": "POST"}))
	assert.Equal(t, float64(2), counterValue(t, m, "tracebeacon_collector_events_total", map[string]string{"type": "load"}))
	assert.Equal(t, float64(1), counterValue(t, m, "tracebeacon_collector_events_total", map[string]string{"type": "unknown"}))
	assert.Equal(t, float64(1), counterValue(t, m, "tracebeacon_collector_rejected_total", map[string]string{"reason": "decode"}))
}
