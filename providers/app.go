// Package providers assembles a runnable metax sync process: client,
// optional Redis relay and the status server.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/orchestra-mcp/metax/config"
	"github.com/orchestra-mcp/metax/src/bridge"
	"github.com/orchestra-mcp/metax/src/service"
	"github.com/orchestra-mcp/metax/src/status"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Version is reported by the CLI and the status server.
const Version = "0.1.0"

// Options selects the optional parts of a SyncApp.
type Options struct {
	// Redis enables the relay bridge. Nil runs standalone.
	Redis *bridge.RedisConfig
	// OnStateChange observes connection state transitions.
	OnStateChange func(types.StateChange)
}

// SyncApp owns the lifecycle of one client and its supporting services.
type SyncApp struct {
	active   bool
	cfg      *config.ClientConfig
	opts     Options
	logger   zerolog.Logger
	registry *prometheus.Registry
	service  *service.Service
	bridge   bridge.Bridge
	status   *status.Server
	serveErr chan error
}

// NewSyncApp builds the client. Nothing connects until Activate.
func NewSyncApp(cfg *config.ClientConfig, tr types.Transport, dialer types.Dialer, logger zerolog.Logger, opts Options) (*SyncApp, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := service.New(cfg, tr, dialer, logger, service.Options{
		Registerer:    reg,
		OnStateChange: opts.OnStateChange,
	})
	if err != nil {
		return nil, err
	}
	return &SyncApp{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		registry: reg,
		service:  svc,
	}, nil
}

func (p *SyncApp) ID() string      { return "metax/sync" }
func (p *SyncApp) Version() string { return Version }
func (p *SyncApp) IsActive() bool  { return p.active }

// Service exposes the client for listener registration.
func (p *SyncApp) Service() *service.Service { return p.service }

// Registry exposes the metrics registry.
func (p *SyncApp) Registry() *prometheus.Registry { return p.registry }

// Activate connects the client, then starts the bridge and status server.
func (p *SyncApp) Activate(ctx context.Context) error {
	if p.active {
		return nil
	}
	if err := p.service.Connect(ctx); err != nil {
		return err
	}

	// Attempt Redis bridge connection (non-fatal if unavailable).
	p.initBridge()

	if p.cfg.StatusAddr != "" {
		p.status = status.New(p.service, p.registry, p.logger)
		p.serveErr = make(chan error, 1)
		go func() { p.serveErr <- p.status.ListenAndServe(p.cfg.StatusAddr) }()
	}

	p.active = true
	p.logger.Info().Str("app", p.ID()).Msg("metax sync activated")
	return nil
}

// initBridge tries to start the Redis relay.
// If Redis is not reachable, the client runs in standalone mode.
func (p *SyncApp) initBridge() {
	if p.opts.Redis == nil {
		return
	}
	p.service.Hub().SetRelayWindow(p.opts.Redis.Window)
	rb := bridge.NewRedisBridge(p.opts.Redis, p.service.Hub(), p.logger)
	if m := p.service.Metrics(); m != nil {
		rb.SetMetrics(m)
	}

	if err := rb.Start(); err != nil {
		p.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		_ = rb.Stop()
		return
	}

	p.bridge = rb
	p.service.SetBridge(rb)
	p.logger.Info().Str("redis_addr", p.opts.Redis.Addr).Msg("redis bridge connected")
}

// ServeErr reports a status server failure. Nil when no server runs.
func (p *SyncApp) ServeErr() <-chan error { return p.serveErr }

// Deactivate stops the bridge and status server and disconnects.
func (p *SyncApp) Deactivate() error {
	var errs []error
	if p.bridge != nil {
		p.service.SetBridge(nil)
		if err := p.bridge.Stop(); err != nil {
			p.logger.Error().Err(err).Msg("bridge stop error")
			errs = append(errs, fmt.Errorf("stop bridge: %w", err))
		}
		p.bridge = nil
	}
	if p.status != nil {
		if err := p.status.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stop status server: %w", err))
		}
		p.status = nil
	}
	if err := p.service.Disconnect(); err != nil {
		errs = append(errs, err)
	}
	p.active = false
	return errors.Join(errs...)
}
