// Package service wires the metax client together: one handle that owns the
// connection manager, the listener registries and the remote coordinator.
package service

import (
	"context"
	"fmt"

	"github.com/orchestra-mcp/metax/config"
	"github.com/orchestra-mcp/metax/src/connection"
	"github.com/orchestra-mcp/metax/src/hub"
	"github.com/orchestra-mcp/metax/src/metrics"
	"github.com/orchestra-mcp/metax/src/transport"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Options carries optional collaborators of a Service.
type Options struct {
	// Registerer receives the client metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// OnStateChange observes connection state transitions.
	OnStateChange func(types.StateChange)
}

// Service is the consumer-facing metax sync client.
type Service struct {
	hub     *hub.Hub
	conn    *connection.Manager
	api     *transport.API
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a disconnected client from cfg. Transport and dialer are
// injected so tests and embedders can replace the network.
func New(cfg *config.ClientConfig, tr types.Transport, dialer types.Dialer, logger zerolog.Logger, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	params := cfg.Params()
	s := &Service{
		api:     transport.NewAPI(tr, params, logger),
		metrics: m,
		logger:  logger.With().Str("component", "service").Logger(),
	}
	s.hub = hub.New(s.api, logger)
	s.hub.SetMetrics(m)
	s.hub.SetMaxListeners(cfg.MaxListeners)
	s.conn = connection.New(params, dialer, s.handleFrame, logger, connection.Options{
		ReconnectDelay: cfg.ReconnectDelay,
		DialTimeout:    cfg.HandshakeTimeout,
		OnStateChange:  opts.OnStateChange,
		Metrics:        m,
	})
	return s, nil
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// API returns the remote endpoint client.
func (s *Service) API() *transport.API { return s.api }

// Metrics returns the client metrics, or nil when disabled.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// SetBridge relays every inbound frame through b.
func (s *Service) SetBridge(b hub.MessageBridge) { s.hub.SetBridge(b) }

// handleFrame runs on the read loop. Dispatch already logs and counts
// protocol violations.
func (s *Service) handleFrame(frame []byte) {
	_ = s.hub.Dispatch(frame)
}

// Connect opens the duplex channel.
func (s *Service) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// Disconnect closes the channel and stops reconnection.
func (s *Service) Disconnect() error {
	return s.conn.Disconnect()
}

// State returns the connection state.
func (s *Service) State() types.ConnectionState {
	return s.conn.State()
}

// Status returns a snapshot for the status surface.
func (s *Service) Status() types.Status {
	p := s.conn.Params()
	return types.Status{
		State:            s.conn.State().String(),
		Host:             p.Host,
		Port:             p.Port,
		Secure:           p.Secure,
		Resources:        s.hub.ResourceCount(),
		SystemListeners:  s.hub.SystemListenerCount(),
		GenericListeners: s.hub.GenericListenerCount(),
		ConnectedAt:      s.conn.ConnectedAt(),
	}
}

// RegisterListener watches the resource id.
func (s *Service) RegisterListener(ctx context.Context, id string, l types.ResourceListener, suppressSelfEcho bool) error {
	if err := s.hub.RegisterListener(ctx, id, l, suppressSelfEcho); err != nil {
		return err
	}
	s.logger.Debug().Str("uuid", id).Msg("watching")
	return nil
}

// UnregisterListener stops l from watching the resource id.
func (s *Service) UnregisterListener(ctx context.Context, id string, l types.ResourceListener) error {
	return s.hub.UnregisterListener(ctx, id, l)
}

// RegisterSystemEventListener subscribes l to system events.
func (s *Service) RegisterSystemEventListener(l types.SystemEventListener) error {
	return s.hub.RegisterSystemEventListener(l)
}

// UnregisterSystemEventListener removes l from the system event registry.
func (s *Service) UnregisterSystemEventListener(l types.SystemEventListener) error {
	return s.hub.UnregisterSystemEventListener(l)
}

// RegisterGenericListener subscribes l to unclassified frames.
func (s *Service) RegisterGenericListener(l types.GenericListener) error {
	return s.hub.RegisterGenericListener(l)
}

// UnregisterGenericListener removes l from the generic registry.
func (s *Service) UnregisterGenericListener(l types.GenericListener) error {
	return s.hub.UnregisterGenericListener(l)
}
