// Package metrics exposes Prometheus counters for the shared transport.
// All methods are nil-receiver safe so instrumentation stays optional.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the transport-level counters.
type Metrics struct {
	// FramesRouted counts inbound frames delivered to an owning session.
	FramesRouted prometheus.Counter

	// FramesUnrouted counts inbound frames whose IDP matched no registered
	// session (stale device, malformed datagram).
	FramesUnrouted prometheus.Counter

	// FramesDropped counts frames evicted from a full session queue.
	FramesDropped prometheus.Counter

	// Resyncs counts IDP forward-probe increments.
	Resyncs prometheus.Counter

	// HardResets counts IDP resets back to the range start.
	HardResets prometheus.Counter

	// Timeouts counts exchanges that exhausted the full retry budget.
	Timeouts prometheus.Counter

	// Reconnects counts reconnect attempts by the supervisor.
	Reconnects prometheus.Counter
}

// New creates the counter set and registers it with reg.
// A nil reg creates unregistered counters, useful in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "transport",
			Name: "frames_routed_total",
			Help: "Inbound frames delivered to an owning session.",
		}),
		FramesUnrouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "transport",
			Name: "frames_unrouted_total",
			Help: "Inbound frames whose IDP matched no registered session.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "transport",
			Name: "frames_dropped_total",
			Help: "Frames evicted from a full session queue.",
		}),
		Resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "exchange",
			Name: "resyncs_total",
			Help: "IDP forward-probe increments during exchanges.",
		}),
		HardResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "exchange",
			Name: "hard_resets_total",
			Help: "IDP resets back to the range start.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "exchange",
			Name: "timeouts_total",
			Help: "Exchanges that exhausted the full retry budget.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pico", Subsystem: "reconnect",
			Name: "attempts_total",
			Help: "Reconnect attempts by the supervisor.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesRouted,
			m.FramesUnrouted,
			m.FramesDropped,
			m.Resyncs,
			m.HardResets,
			m.Timeouts,
			m.Reconnects,
		)
	}

	return m
}

// IncRouted increments FramesRouted.
func (m *Metrics) IncRouted() {
	if m != nil {
		m.FramesRouted.Inc()
	}
}

// IncUnrouted increments FramesUnrouted.
func (m *Metrics) IncUnrouted() {
	if m != nil {
		m.FramesUnrouted.Inc()
	}
}

// IncDropped increments FramesDropped.
func (m *Metrics) IncDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

// IncResync increments Resyncs.
func (m *Metrics) IncResync() {
	if m != nil {
		m.Resyncs.Inc()
	}
}

// IncHardReset increments HardResets.
func (m *Metrics) IncHardReset() {
	if m != nil {
		m.HardResets.Inc()
	}
}

// IncTimeout increments Timeouts.
func (m *Metrics) IncTimeout() {
	if m != nil {
		m.Timeouts.Inc()
	}
}

// IncReconnect increments Reconnects.
func (m *Metrics) IncReconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}
