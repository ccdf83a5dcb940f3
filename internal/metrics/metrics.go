package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for both the API server and the
// client-side cascade coordinators. A nil *Metrics records nothing.
type Metrics struct {
	nestedWrites       *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	cascadeDeleted     *prometheus.CounterVec
	cascadeOps         *prometheus.CounterVec
	pseudoSaves        *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		nestedWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_nested_writes_total",
				Help: "Total number of records written through nested payloads",
			},
			[]string{"entity", "action"},
		),
		validationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_validation_failures_total",
				Help: "Total number of rejected writes with validation errors",
			},
			[]string{"entity"},
		),
		cascadeDeleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_cascade_deleted_records_total",
				Help: "Total number of records deleted through on_delete cascades",
			},
			[]string{"entity"},
		),
		cascadeOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_cascade_operations_total",
				Help: "Total number of client cascade operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		pseudoSaves: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_pseudo_transitions_total",
				Help: "Total number of local-only state transitions issued by cascades",
			},
			[]string{"transition"},
		),
	}
}

func (m *Metrics) NestedWrite(entity, action string) {
	if m == nil {
		return
	}
	m.nestedWrites.WithLabelValues(entity, action).Inc()
}

func (m *Metrics) ValidationFailure(entity string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(entity).Inc()
}

func (m *Metrics) CascadeDeleted(entity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.cascadeDeleted.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) CascadeOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.cascadeOps.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) PseudoTransition(transition string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.pseudoSaves.WithLabelValues(transition).Add(float64(n))
}

// Counters flattens every counter series gathered from g into a map keyed by
// name{label="value",...}. Label pairs come sorted by name.
func Counters(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			out[mf.GetName()+"{"+strings.Join(pairs, ",")+"}"] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}
