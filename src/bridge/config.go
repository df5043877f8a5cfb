package bridge

import (
	"os"
	"strconv"
	"time"
)

// RedisConfig describes the relay: where Redis lives and how long a relayed
// frame is matched against the upstream copy of the same push.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // channel prefix; frames go to Prefix+"frames"
	Window   time.Duration // dedup window for upstream vs relayed copies
}

// DefaultRedisConfig relays on localhost with a 10s dedup window.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "metax:sync:",
		Window: 10 * time.Second,
	}
}

// Channel is the pub/sub channel frames are relayed on.
func (c *RedisConfig) Channel() string {
	return c.Prefix + "frames"
}

// RedisConfigFromEnv overlays REDIS_ADDR, REDIS_PASSWORD, REDIS_DB,
// METAX_REDIS_PREFIX and METAX_RELAY_WINDOW on the defaults. Unparsable
// numbers are ignored.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()
	lookup := func(key string, apply func(string) error) {
		if v := os.Getenv(key); v != "" {
			_ = apply(v)
		}
	}

	lookup("REDIS_ADDR", func(v string) error { cfg.Addr = v; return nil })
	lookup("REDIS_PASSWORD", func(v string) error { cfg.Password = v; return nil })
	lookup("REDIS_DB", func(v string) error {
		db, err := strconv.Atoi(v)
		if err == nil {
			cfg.DB = db
		}
		return err
	})
	lookup("METAX_REDIS_PREFIX", func(v string) error { cfg.Prefix = v; return nil })
	lookup("METAX_RELAY_WINDOW", func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			cfg.Window = d
		}
		return err
	})
	return cfg
}
