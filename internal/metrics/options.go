// Package metrics exposes Prometheus collectors for the interview event pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(p *Pipeline) {
		if namespace != "" {
			p.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(p *Pipeline) {
		if len(buckets) > 0 {
			p.buckets = buckets
		}
	}
}

// WithRegistry sets the registerer the collectors are added to.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(p *Pipeline) {
		if registry != nil {
			p.registry = registry
		}
	}
}
