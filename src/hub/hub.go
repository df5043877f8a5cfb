package hub

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/orchestra-mcp/metax/src/metrics"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/rs/zerolog"
)

// Coordinator mirrors listener registrations on the remote service.
// Defined here to avoid circular imports with the transport package.
type Coordinator interface {
	RegisterListener(ctx context.Context, id types.ResourceID) error
	UnregisterListener(ctx context.Context, id types.ResourceID) error
}

// MessageBridge publishes inbound frames to other client instances.
type MessageBridge interface {
	Publish(frame []byte) error
	Available() bool
}

// Hub owns the listener registries and routes inbound frames to them.
type Hub struct {
	resources map[types.ResourceID][]subscriber
	inflight  map[types.ResourceID]chan struct{}
	system    multicast[types.SystemEventListener]
	generic   multicast[types.GenericListener]

	remote  Coordinator
	bridge  MessageBridge
	relay   *relayWindow
	metrics *metrics.Metrics
	mu      sync.Mutex
	logger  zerolog.Logger
}

type subscriber struct {
	listener         types.ResourceListener
	suppressSelfEcho bool
}

// New creates a Hub that coordinates registrations through remote.
func New(remote Coordinator, logger zerolog.Logger) *Hub {
	return &Hub{
		resources: make(map[types.ResourceID][]subscriber),
		inflight:  make(map[types.ResourceID]chan struct{}),
		system:    multicast[types.SystemEventListener]{name: "system"},
		generic:   multicast[types.GenericListener]{name: "generic"},
		remote:    remote,
		relay:     newRelayWindow(DefaultRelayWindow),
		logger:    logger.With().Str("component", "hub").Logger(),
	}
}

// SetBridge attaches a cross-instance bridge. Frames dispatched with
// Dispatch are forwarded to it after local delivery.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// SetRelayWindow sets how long frames are remembered to match upstream and
// relayed copies of the same push. Non-positive values use the default.
func (h *Hub) SetRelayWindow(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = newRelayWindow(ttl)
}

func (h *Hub) relayRef() *relayWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.relay
}

// SetMetrics attaches metrics. A nil value disables recording.
func (h *Hub) SetMetrics(m *metrics.Metrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = m
}

// SetMaxListeners caps the system and generic registries. 0 means unlimited.
func (h *Hub) SetMaxListeners(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.system.max = n
	h.generic.max = n
}

// acquire serializes registry changes for one resource so that remote
// register/unregister calls are issued once per transition.
func (h *Hub) acquire(ctx context.Context, id types.ResourceID) error {
	for {
		h.mu.Lock()
		busy, ok := h.inflight[id]
		if !ok {
			h.inflight[id] = make(chan struct{})
			h.mu.Unlock()
			return nil
		}
		h.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) release(id types.ResourceID) {
	h.mu.Lock()
	done := h.inflight[id]
	delete(h.inflight, id)
	h.mu.Unlock()
	close(done)
}

// invoke runs one listener, converting errors and panics into log lines.
func (h *Hub) invoke(registry string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			h.metricsRef().ListenerFailure(registry)
			h.logger.Error().
				Str("registry", registry).
				Interface("panic", r).
				Msg("listener panicked")
		}
	}()
	if err := fn(); err != nil {
		h.metricsRef().ListenerFailure(registry)
		h.logger.Error().Err(err).Str("registry", registry).Msg("listener error")
	}
}

func (h *Hub) metricsRef() *metrics.Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

// comparableListener rejects nil and listeners whose dynamic type cannot be
// compared, since registries find listeners by identity.
func comparableListener(l any) bool {
	if l == nil {
		return false
	}
	t := reflect.TypeOf(l)
	if !t.Comparable() {
		return false
	}
	v := reflect.ValueOf(l)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !v.IsNil()
	}
	return true
}
