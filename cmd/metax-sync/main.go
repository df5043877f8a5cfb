package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"
	"github.com/orchestra-mcp/metax/config"
	"github.com/orchestra-mcp/metax/providers"
	"github.com/orchestra-mcp/metax/src/bridge"
	"github.com/orchestra-mcp/metax/src/transport"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/rs/zerolog"
)

const usage = `metax sync client.

Connects to metax_web_api, watches resources and logs every notification.
Unset options fall back to METAX_* environment variables, then defaults.

Usage:
    metax-sync [options] [--watch=<uuid>...]
    metax-sync -h | --help
    metax-sync --version

Options:
    -h --help                 Show this screen.
    --version                 Show version.
    --env=<file>              Load environment from this file [default: .env].
    --host=<host>             metax_web_api host.
    --port=<port>             metax_web_api port.
    --token=<token>           Access token.
    --secure                  Use https/wss.
    --no-encryption           Store data unencrypted.
    --watch=<uuid>            Watch a resource; repeatable.
    --read-limit=<bytes>      Largest inbound frame accepted, 0 = unlimited.
    --status-addr=<addr>      Serve /status, /healthz and /metrics here.
    --redis                   Relay frames through Redis (REDIS_ADDR).
    --log-level=<level>       zerolog level [default: info].`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], providers.Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	envFile, _ := opts.String("--env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", envFile, err)
		os.Exit(1)
	}

	logger := newLogger(opts)
	cfg, err := buildConfig(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	appOpts := providers.Options{
		OnStateChange: func(c types.StateChange) {
			logger.Info().Stringer("from", c.From).Stringer("to", c.To).Msg("connection state")
		},
	}
	if redis, _ := opts.Bool("--redis"); redis {
		appOpts.Redis = bridge.RedisConfigFromEnv()
	}

	app, err := providers.NewSyncApp(
		cfg,
		transport.NewHTTPTransport(cfg.HTTPTimeout),
		transport.NewWSDialer(cfg.HandshakeTimeout, cfg.ReadLimit),
		logger,
		appOpts,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("couldn't build client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout+5*time.Second)
	err = app.Activate(connectCtx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("couldn't connect")
	}

	watch(ctx, app, opts, logger)

	select {
	case <-ctx.Done():
	case err := <-app.ServeErr():
		logger.Error().Err(err).Msg("status server stopped")
	}

	logger.Info().Msg("shutting down")
	if err := app.Deactivate(); err != nil {
		logger.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}
}

func newLogger(opts docopt.Opts) zerolog.Logger {
	levelStr, _ := opts.String("--log-level")
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().
		Logger()
}

func buildConfig(opts docopt.Opts) (*config.ClientConfig, error) {
	cfg := config.ConfigFromEnv()

	if host, err := opts.String("--host"); err == nil && host != "" {
		cfg.Host = host
	}
	if portStr, err := opts.String("--port"); err == nil && portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("--port: %w", err)
		}
		cfg.Port = port
	}
	if token, err := opts.String("--token"); err == nil && token != "" {
		cfg.AccessToken = token
	}
	if secure, _ := opts.Bool("--secure"); secure {
		cfg.Secure = true
	}
	if plain, _ := opts.Bool("--no-encryption"); plain {
		cfg.Encryption = false
	}
	if limitStr, err := opts.String("--read-limit"); err == nil && limitStr != "" {
		limit, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--read-limit: %w", err)
		}
		cfg.ReadLimit = limit
	}
	if addr, err := opts.String("--status-addr"); err == nil && addr != "" {
		cfg.StatusAddr = addr
	}
	return cfg, cfg.Validate()
}

// watch registers logging listeners for every --watch id plus system and
// unclassified frames.
func watch(ctx context.Context, app *providers.SyncApp, opts docopt.Opts, logger zerolog.Logger) {
	svc := app.Service()

	updates := types.NewResourceListener(func(id types.ResourceID, event json.RawMessage) error {
		logger.Info().Str("uuid", id.String()).RawJSON("event", event).Msg("resource updated")
		return nil
	})
	system := types.NewSystemEventListener(func(event json.RawMessage) error {
		logger.Info().RawJSON("event", event).Msg("system event")
		return nil
	})
	generic := types.NewGenericListener(func(raw []byte) error {
		logger.Debug().Bytes("frame", raw).Msg("unclassified frame")
		return nil
	})

	if err := svc.RegisterSystemEventListener(system); err != nil {
		logger.Error().Err(err).Msg("register system listener")
	}
	if err := svc.RegisterGenericListener(generic); err != nil {
		logger.Error().Err(err).Msg("register generic listener")
	}

	ids, _ := opts["--watch"].([]string)
	for _, id := range ids {
		if err := svc.RegisterListener(ctx, id, updates, false); err != nil {
			logger.Error().Err(err).Str("uuid", id).Msg("couldn't watch resource")
			continue
		}
		logger.Info().Str("uuid", id).Msg("watching resource")
	}
}
