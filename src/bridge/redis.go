package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/metax/src/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisEnvelope wraps a frame with the originating instance ID
// so that a node can skip its own published frames.
type redisEnvelope struct {
	InstanceID string          `json:"instance_id"`
	Frame      json.RawMessage `json:"frame,omitempty"`
	Raw        []byte          `json:"raw,omitempty"`
}

// newEnvelope keeps JSON frames readable on the wire and falls back to
// base64 for anything else.
func newEnvelope(instanceID string, frame []byte) redisEnvelope {
	env := redisEnvelope{InstanceID: instanceID}
	if json.Valid(frame) {
		env.Frame = json.RawMessage(frame)
	} else {
		env.Raw = frame
	}
	return env
}

func (e redisEnvelope) payload() []byte {
	if e.Frame != nil {
		return e.Frame
	}
	return e.Raw
}

// RedisBridge relays inbound frames between client instances via Redis pub/sub.
type RedisBridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	target     RelayTarget
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge that uses Redis pub/sub for cross-instance relaying.
func NewRedisBridge(cfg *RedisConfig, target RelayTarget, logger zerolog.Logger) *RedisBridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		channel:    cfg.Channel(),
		instanceID: uuid.New().String(),
		target:     target,
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetMetrics attaches metrics. Call before Start.
func (b *RedisBridge) SetMetrics(m *metrics.Metrics) {
	b.metrics = m
}

// InstanceID identifies this bridge on the relay channel.
func (b *RedisBridge) InstanceID() string {
	return b.instanceID
}

// Start subscribes to the Redis relay channel and begins forwarding frames.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	sub := b.client.Subscribe(b.ctx, b.channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(b.ctx); err != nil {
		_ = sub.Close()
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("channel", b.channel).
		Msg("redis bridge started")
	return nil
}

// Publish sends a frame to all other instances via Redis.
func (b *RedisBridge) Publish(frame []byte) error {
	data, err := json.Marshal(newEnvelope(b.instanceID, frame))
	if err != nil {
		return err
	}
	return b.client.Publish(b.ctx, b.channel, data).Err()
}

// Stop unsubscribes and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// listen reads frames from the Redis subscription and forwards them to the target.
func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handlePayload([]byte(msg.Payload))
		case <-b.ctx.Done():
			return
		}
	}
}

// handlePayload decodes an envelope and forwards frames from other instances.
func (b *RedisBridge) handlePayload(payload []byte) {
	var env redisEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Error().Err(err).Msg("failed to decode redis envelope")
		return
	}

	// Skip frames that originated from this instance.
	if env.InstanceID == b.instanceID {
		return
	}

	b.logger.Debug().
		Str("from_instance", env.InstanceID).
		Msg("relaying frame from redis")

	b.metrics.Relayed("in")
	if err := b.target.DispatchRelayed(env.payload()); err != nil {
		b.logger.Warn().Err(err).Str("from_instance", env.InstanceID).Msg("relayed frame rejected")
	}
}
