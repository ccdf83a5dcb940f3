package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.NestedWrite("department", "insert")
	m.NestedWrite("department", "insert")
	m.CascadeDeleted("user", 3)
	m.CascadeDeleted("user", 0)
	m.CascadeOperation("save", "ok")
	m.PseudoTransition("saved", 2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.nestedWrites.WithLabelValues("department", "insert")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.cascadeDeleted.WithLabelValues("user")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cascadeOps.WithLabelValues("save", "ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.pseudoSaves.WithLabelValues("saved")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.NestedWrite("company", "update")
	m.ValidationFailure("company")
	m.CascadeDeleted("company", 1)
	m.CascadeOperation("delete", "error")
	m.PseudoTransition("invalid", 1)
}

func TestCounters_FlattensSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CascadeOperation("delete", "ok")
	m.PseudoTransition("saved", 3)

	got, err := Counters(reg)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		`orgchart_cascade_operations_total{operation="delete",outcome="ok"}`: 1,
		`orgchart_pseudo_transitions_total{transition="saved"}`:              3,
	}, got)
}
