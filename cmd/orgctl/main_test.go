package main

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/metrics"
)

func TestDumpMetrics_LogsCascadeCounters(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	promReg = prometheus.NewRegistry()
	cm = metrics.New(promReg)
	cm.CascadeOperation("save", "invalid")
	cm.PseudoTransition("invalid", 2)

	require.NoError(t, dumpMetrics(rootCmd, nil))
	out := buf.String()
	assert.Contains(t, out, `orgchart_cascade_operations_total{operation=\"save\",outcome=\"invalid\"}`)
	assert.Contains(t, out, `orgchart_pseudo_transitions_total{transition=\"invalid\"}`)
	assert.Contains(t, out, `"value":2`)
}
