package handlers

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the handler-side counters; the server registers them next to
// its own collectors.
type Metrics struct {
	BlockedWrites    prometheus.Counter
	UpstreamFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		BlockedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mspb_blocked_writes_total",
			Help: "Total number of writes intercepted by read-only mode.",
		}),
		UpstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mspb_upstream_failures_total",
			Help: "Total number of failed calls to the directory or MFA secret service.",
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.BlockedWrites, m.UpstreamFailures}
}

func (m *Metrics) blockedWrite() {
	if m != nil && m.BlockedWrites != nil {
		m.BlockedWrites.Inc()
	}
}

func (m *Metrics) upstreamFailure() {
	if m != nil && m.UpstreamFailures != nil {
		m.UpstreamFailures.Inc()
	}
}
