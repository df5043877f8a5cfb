package bridge

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRelayTarget records frames forwarded from the bridge.
type mockRelayTarget struct {
	received [][]byte
	err      error
}

func (m *mockRelayTarget) DispatchRelayed(frame []byte) error {
	m.received = append(m.received, frame)
	return m.err
}

func TestRedisEnvelopeKeepsJSONFrames(t *testing.T) {
	frame := []byte(`{"event":{"op":"update"},"uuid":"3fae0000-0000-4000-8000-000000000001"}`)

	data, err := json.Marshal(newEnvelope("instance-abc", frame))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"frame":{"event"`)

	var decoded redisEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "instance-abc", decoded.InstanceID)
	assert.JSONEq(t, string(frame), string(decoded.payload()))
}

func TestRedisEnvelopeCarriesNonJSONFrames(t *testing.T) {
	frame := []byte("plain text notice")

	data, err := json.Marshal(newEnvelope("node-1", frame))
	require.NoError(t, err)

	var decoded redisEnvelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Frame)
	assert.Equal(t, frame, decoded.payload())
}

func TestHandlePayloadSkipsOwnFrames(t *testing.T) {
	target := &mockRelayTarget{}
	rb := NewRedisBridge(DefaultRedisConfig(), target, testLogger())

	own, err := json.Marshal(newEnvelope(rb.InstanceID(), []byte(`{"event":"x"}`)))
	require.NoError(t, err)
	rb.handlePayload(own)
	assert.Empty(t, target.received)

	other, err := json.Marshal(newEnvelope("other-node", []byte(`{"event":"x"}`)))
	require.NoError(t, err)
	rb.handlePayload(other)
	require.Len(t, target.received, 1)
	assert.JSONEq(t, `{"event":"x"}`, string(target.received[0]))
}

func TestHandlePayloadToleratesBadInput(t *testing.T) {
	target := &mockRelayTarget{err: errors.New("rejected")}
	rb := NewRedisBridge(DefaultRedisConfig(), target, testLogger())

	rb.handlePayload([]byte("not an envelope"))
	assert.Empty(t, target.received)

	env, err := json.Marshal(newEnvelope("other-node", []byte(`{"event":1}`)))
	require.NoError(t, err)
	rb.handlePayload(env) // target error is logged only
	assert.Len(t, target.received, 1)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "metax:sync:", cfg.Prefix)
	assert.Equal(t, "metax:sync:frames", cfg.Channel())
	assert.Equal(t, 10*time.Second, cfg.Window)
}

func TestRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("METAX_REDIS_PREFIX", "test:sync:")
	t.Setenv("METAX_RELAY_WINDOW", "2s")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, "redis.example.com:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "test:sync:frames", cfg.Channel())
	assert.Equal(t, 2*time.Second, cfg.Window)
}

func TestRedisConfigFromEnvDefaults(t *testing.T) {
	cfg := RedisConfigFromEnv()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, "metax:sync:", cfg.Prefix)
}

func TestRedisConfigFromEnvInvalidDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("METAX_RELAY_WINDOW", "-1s")

	cfg := RedisConfigFromEnv()
	assert.Equal(t, 0, cfg.DB) // falls back to default
	assert.Equal(t, 10*time.Second, cfg.Window)
}

func TestRedisBridgeAvailableFalseBeforeStart(t *testing.T) {
	rb := NewRedisBridge(DefaultRedisConfig(), &mockRelayTarget{}, testLogger())
	assert.False(t, rb.Available())
}

func TestRedisBridgeStartFailsWithoutServer(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	rb := NewRedisBridge(cfg, &mockRelayTarget{}, testLogger())
	assert.Error(t, rb.Start())
	assert.False(t, rb.Available())
	_ = rb.Stop()
}

func TestRedisBridgeInstanceIDUnique(t *testing.T) {
	target := &mockRelayTarget{}
	cfg := DefaultRedisConfig()
	b1 := NewRedisBridge(cfg, target, testLogger())
	b2 := NewRedisBridge(cfg, target, testLogger())
	assert.NotEqual(t, b1.InstanceID(), b2.InstanceID())
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
