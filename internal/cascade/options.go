package cascade

import "orgchart/internal/metrics"

type options struct {
	metrics *metrics.Metrics
}

// Option configures a coordinator.
type Option func(*options)

// WithMetrics records cascade outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
