// Package stats exposes the server's Prometheus counters, the same
// metrics library caddyserver-caddy and luxfi-consensus both depend on
// for their own observability surface.
package stats

import "github.com/prometheus/client_golang/prometheus"

// Sink collects counters for one running server. It is safe for
// concurrent use, since prometheus.Counter/Gauge already are.
type Sink struct {
	RequestsTotal    prometheus.Counter
	RequestsRejected *prometheus.CounterVec
	ResponsesSent    prometheus.Counter
	BatchesClosed    prometheus.Counter
	BatchSize        prometheus.Histogram
}

// NewSink registers a fresh set of counters against reg and returns
// them. Passing prometheus.NewRegistry() isolates the sink for tests;
// passing prometheus.DefaultRegisterer registers it in Prometheus's
// process-wide default registry. This module serves no /metrics HTTP
// endpoint of its own.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roughtime",
			Name:      "requests_total",
			Help:      "Total requests received.",
		}),
		RequestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roughtime",
			Name:      "requests_rejected_total",
			Help:      "Requests rejected, by reason.",
		}, []string{"reason"}),
		ResponsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roughtime",
			Name:      "responses_sent_total",
			Help:      "Total responses sent.",
		}),
		BatchesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roughtime",
			Name:      "batches_closed_total",
			Help:      "Total batches closed and signed.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roughtime",
			Name:      "batch_size",
			Help:      "Number of requests per closed batch.",
			Buckets:   prometheus.LinearBuckets(1, 4, 16),
		}),
	}
	reg.MustRegister(
		s.RequestsTotal,
		s.RequestsRejected,
		s.ResponsesSent,
		s.BatchesClosed,
		s.BatchSize,
	)
	return s
}
