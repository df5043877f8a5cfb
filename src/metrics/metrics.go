// Package metrics holds the Prometheus instruments of the metax client.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "metax"

// Metrics groups client instruments.
type Metrics struct {
	framesTotal        *prometheus.CounterVec
	listenerFailures   *prometheus.CounterVec
	protocolViolations prometheus.Counter
	reconnectAttempts  prometheus.Counter
	connectionState    prometheus.Gauge
	watchedResources   prometheus.Gauge
	relayedFrames      *prometheus.CounterVec
}

// New creates client metrics and registers them with reg.
// Returns nil when reg is nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "frames_total",
			Help:      "Inbound frames by classified kind",
		}, []string{"kind"}),

		listenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "listener_failures_total",
			Help:      "Listener invocations that returned an error or panicked",
		}, []string{"registry"}),

		protocolViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "protocol_violations_total",
			Help:      "Resource updates received for resources nobody watches",
		}),

		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnection attempts",
		}),

		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "Connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnect pending)",
		}),

		watchedResources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "watched_resources",
			Help:      "Resources with at least one registered listener",
		}),

		relayedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "frames_total",
			Help:      "Frames relayed through the bridge by direction",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{
		m.framesTotal,
		m.listenerFailures,
		m.protocolViolations,
		m.reconnectAttempts,
		m.connectionState,
		m.watchedResources,
		m.relayedFrames,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Frame counts one inbound frame of the given kind.
func (m *Metrics) Frame(kind string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(kind).Inc()
}

// ListenerFailure counts a failed listener invocation.
func (m *Metrics) ListenerFailure(registry string) {
	if m == nil {
		return
	}
	m.listenerFailures.WithLabelValues(registry).Inc()
}

// ProtocolViolation counts an update for an unwatched resource.
func (m *Metrics) ProtocolViolation() {
	if m == nil {
		return
	}
	m.protocolViolations.Inc()
}

// ReconnectAttempt counts an automatic reconnection attempt.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// SetConnectionState records the numeric connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// SetWatchedResources records the number of watched resources.
func (m *Metrics) SetWatchedResources(n int) {
	if m == nil {
		return
	}
	m.watchedResources.Set(float64(n))
}

// Relayed counts a frame passing through the bridge ("in" or "out").
func (m *Metrics) Relayed(direction string) {
	if m == nil {
		return
	}
	m.relayedFrames.WithLabelValues(direction).Inc()
}
