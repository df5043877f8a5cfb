// Package connection owns the duplex channel to metax_web_api and keeps it
// alive with fixed-delay reconnection.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orchestra-mcp/metax/src/metrics"
	"github.com/orchestra-mcp/metax/src/transport"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/rs/zerolog"
)

// DefaultReconnectDelay is used when Options.ReconnectDelay is zero.
const DefaultReconnectDelay = 3 * time.Second

// FrameHandler receives every inbound frame, one at a time.
type FrameHandler func(frame []byte)

// Options tunes a Manager.
type Options struct {
	// ReconnectDelay is the wait before each reconnection attempt.
	ReconnectDelay time.Duration
	// OnStateChange is called after every state transition, outside the lock.
	OnStateChange func(types.StateChange)
	// DialTimeout bounds each automatic reconnection dial. Zero leaves it to
	// the dialer.
	DialTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Manager runs the Disconnected -> Connecting -> Connected ->
// ReconnectPending -> Connecting cycle until Disconnect.
type Manager struct {
	params  types.ConnectionParams
	dialer  types.Dialer
	handler FrameHandler
	opt     Options
	logger  zerolog.Logger

	mu          sync.Mutex
	state       types.ConnectionState
	conn        types.Conn
	timer       *time.Timer
	generation  uint64 // bumped whenever the current conn is replaced or detached
	connectedAt time.Time
}

// New creates a disconnected manager.
func New(params types.ConnectionParams, dialer types.Dialer, handler FrameHandler, logger zerolog.Logger, opt Options) *Manager {
	if opt.ReconnectDelay <= 0 {
		opt.ReconnectDelay = DefaultReconnectDelay
	}
	return &Manager{
		params:  params,
		dialer:  dialer,
		handler: handler,
		opt:     opt,
		logger: logger.With().
			Str("component", "connection").
			Str("addr", params.Address()).
			Logger(),
		state: types.StateDisconnected,
	}
}

// State returns the current connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConnectedAt returns when the current channel was opened, or zero.
func (m *Manager) ConnectedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectedAt
}

// Params returns the parameters used for every connection attempt.
func (m *Manager) Params() types.ConnectionParams { return m.params }

// Connect opens the channel. It fails with ErrAlreadyConnected unless the
// manager is Disconnected; a failed attempt leaves it Disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != types.StateDisconnected {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: state %s", types.ErrAlreadyConnected, state)
	}
	gen := m.generation
	change := m.setStateLocked(types.StateConnecting, nil)
	m.mu.Unlock()
	m.notify(change)

	conn, err := m.dialer.Dial(ctx, m.params.WebsocketURL())

	m.mu.Lock()
	if m.generation != gen || m.state != types.StateConnecting {
		// Disconnect ran while dialing.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("%w: disconnected while connecting", types.ErrConnect)
	}
	if err != nil {
		change = m.setStateLocked(types.StateDisconnected, err)
		m.mu.Unlock()
		m.notify(change)
		m.logger.Error().Err(err).Msg("connect failed")
		return fmt.Errorf("%w: %w", types.ErrConnect, err)
	}
	change = m.attachLocked(conn)
	m.mu.Unlock()
	m.notify(change)

	m.logger.Info().Msg("connected")
	return nil
}

// Disconnect closes the channel without triggering reconnection and cancels
// a pending reconnect. Calling it while Disconnected is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.state == types.StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.generation++
	m.connectedAt = time.Time{}
	change := m.setStateLocked(types.StateDisconnected, nil)
	m.mu.Unlock()
	m.notify(change)

	m.logger.Info().Msg("disconnected")
	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	return nil
}

// attachLocked installs conn as the live channel and starts its read loop.
func (m *Manager) attachLocked(conn types.Conn) types.StateChange {
	m.generation++
	m.conn = conn
	m.connectedAt = time.Now()
	change := m.setStateLocked(types.StateConnected, nil)
	go m.readLoop(conn, m.generation)
	return change
}

// readLoop delivers frames sequentially until the channel fails.
func (m *Manager) readLoop(conn types.Conn, gen uint64) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(conn, gen, err)
			return
		}
		if !m.current(gen) {
			return
		}
		m.handler(frame)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == gen
}

// handleDrop moves a live channel to ReconnectPending. Drops of detached
// channels (after Disconnect or replacement) are ignored.
func (m *Manager) handleDrop(conn types.Conn, gen uint64, cause error) {
	m.mu.Lock()
	if m.generation != gen || m.state != types.StateConnected {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connectedAt = time.Time{}
	change := m.setStateLocked(types.StateReconnectPending, cause)
	m.scheduleLocked()
	m.mu.Unlock()
	m.notify(change)

	_ = conn.Close()

	ev := m.logger.Warn().Err(cause).Dur("delay", m.opt.ReconnectDelay)
	if code, reason, ok := transport.CloseReason(cause); ok {
		ev = ev.Int("code", code).Str("reason", reason)
	}
	ev.Msg("channel closed, scheduling reconnect")
}

// scheduleLocked arms the reconnect timer unless one is already pending.
func (m *Manager) scheduleLocked() {
	if m.timer != nil {
		return
	}
	gen := m.generation
	m.timer = time.AfterFunc(m.opt.ReconnectDelay, func() { m.reconnect(gen) })
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	m.timer = nil
	if m.generation != gen || m.state != types.StateReconnectPending {
		m.mu.Unlock()
		return
	}
	change := m.setStateLocked(types.StateConnecting, nil)
	m.mu.Unlock()
	m.notify(change)

	m.opt.Metrics.ReconnectAttempt()
	m.logger.Info().Msg("reconnecting")

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if m.opt.DialTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.opt.DialTimeout)
	}
	conn, err := m.dialer.Dial(ctx, m.params.WebsocketURL())
	cancel()

	m.mu.Lock()
	if m.generation != gen || m.state != types.StateConnecting {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		change = m.setStateLocked(types.StateReconnectPending, err)
		m.scheduleLocked()
		m.mu.Unlock()
		m.notify(change)
		m.logger.Error().Err(err).Dur("delay", m.opt.ReconnectDelay).Msg("couldn't reconnect")
		return
	}
	change = m.attachLocked(conn)
	m.mu.Unlock()
	m.notify(change)

	m.logger.Info().Msg("reconnected")
}

func (m *Manager) setStateLocked(to types.ConnectionState, cause error) types.StateChange {
	change := types.StateChange{From: m.state, To: to, Err: cause}
	m.state = to
	m.opt.Metrics.SetConnectionState(int(to))
	return change
}

func (m *Manager) notify(change types.StateChange) {
	if m.opt.OnStateChange != nil && change.From != change.To {
		m.opt.OnStateChange(change)
	}
}
