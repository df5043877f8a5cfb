package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/orchestra-mcp/metax/src/types"
)

// ClientConfig holds metax client configuration.
type ClientConfig struct {
	Host             string        // metax_web_api host, default "localhost"
	Port             int           // metax_web_api port, default 8001
	Encryption       bool          // store data encrypted, default true
	AccessToken      string        // metax_web_api access token
	Secure           bool          // use https/wss, default false
	ReconnectDelay   time.Duration // delay before each reconnect attempt, default 3s
	HandshakeTimeout time.Duration // websocket handshake timeout, default 10s
	HTTPTimeout      time.Duration // per-request timeout for the transport, default 30s
	ReadLimit        int64         // max inbound frame size in bytes, 0 = unlimited
	MaxListeners     int           // cap for system/generic registries, 0 = unlimited
	StatusAddr       string        // status server listen address, "" disables it
}

// DefaultConfig returns a ClientConfig with the service defaults.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Host:             "localhost",
		Port:             8001,
		Encryption:       true,
		ReconnectDelay:   3 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		HTTPTimeout:      30 * time.Second,
	}
}

// ConfigFromEnv loads client configuration from environment variables.
// Falls back to defaults for any missing or unparsable values.
func ConfigFromEnv() *ClientConfig {
	cfg := DefaultConfig()

	if host := os.Getenv("METAX_HOST"); host != "" {
		cfg.Host = host
	}
	if portStr := os.Getenv("METAX_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}
	if token := os.Getenv("METAX_TOKEN"); token != "" {
		cfg.AccessToken = token
	}
	if enc := os.Getenv("METAX_ENCRYPTION"); enc != "" {
		if b, err := strconv.ParseBool(enc); err == nil {
			cfg.Encryption = b
		}
	}
	if sec := os.Getenv("METAX_SECURE"); sec != "" {
		if b, err := strconv.ParseBool(sec); err == nil {
			cfg.Secure = b
		}
	}
	if d, ok := durationEnv("METAX_RECONNECT_DELAY"); ok {
		cfg.ReconnectDelay = d
	}
	if d, ok := durationEnv("METAX_HANDSHAKE_TIMEOUT"); ok {
		cfg.HandshakeTimeout = d
	}
	if d, ok := durationEnv("METAX_HTTP_TIMEOUT"); ok {
		cfg.HTTPTimeout = d
	}
	if n := os.Getenv("METAX_MAX_LISTENERS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			cfg.MaxListeners = v
		}
	}
	if n := os.Getenv("METAX_READ_LIMIT"); n != "" {
		if v, err := strconv.ParseInt(n, 10, 64); err == nil {
			cfg.ReadLimit = v
		}
	}
	if addr := os.Getenv("METAX_STATUS_ADDR"); addr != "" {
		cfg.StatusAddr = addr
	}
	return cfg
}

func durationEnv(key string) (time.Duration, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Validate checks ranges that would otherwise fail at connect time.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("config: reconnect delay must be positive, got %s", c.ReconnectDelay)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("config: handshake timeout must be positive, got %s", c.HandshakeTimeout)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("config: http timeout cannot be negative")
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("config: read limit cannot be negative")
	}
	if c.MaxListeners < 0 {
		return fmt.Errorf("config: max listeners cannot be negative")
	}
	return nil
}

// Params returns the connection parameters described by the config.
func (c *ClientConfig) Params() types.ConnectionParams {
	return types.NewConnectionParams(c.Host, c.Port, c.Encryption, c.AccessToken, c.Secure)
}
