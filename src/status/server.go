// Package status serves a read-only HTTP view of a running client:
// connection state, registry sizes and Prometheus metrics.
package status

import (
	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Reporter produces the status snapshot served on /status.
type Reporter interface {
	Status() types.Status
}

// Server hosts the status routes. /metrics is served by promhttp through a
// fasthttp adaptor, next to the Fiber app that handles everything else.
type Server struct {
	app      *fiber.App
	srv      *fasthttp.Server
	reporter Reporter
	metrics  fasthttp.RequestHandler
	logger   zerolog.Logger
}

// New creates a status server. A nil gatherer disables /metrics.
func New(reporter Reporter, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{AppName: "metax-sync"}),
		reporter: reporter,
		logger:   logger.With().Str("component", "status").Logger(),
	}
	if gatherer != nil {
		s.metrics = fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		)
	}
	s.RegisterRoutes(s.app)
	s.srv = &fasthttp.Server{
		Handler: s.Handler(),
		Name:    "metax-sync",
	}
	return s
}

// RegisterRoutes registers the status routes on a Fiber router.
func (s *Server) RegisterRoutes(group fiber.Router) {
	group.Get("/status", s.handleStatus)
	group.Get("/healthz", s.handleHealth)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Handler returns the combined fasthttp handler.
func (s *Server) Handler() fasthttp.RequestHandler {
	appHandler := s.app.Handler()
	return func(ctx *fasthttp.RequestCtx) {
		if s.metrics != nil && string(ctx.Path()) == "/metrics" {
			s.metrics(ctx)
			return
		}
		appHandler(ctx)
	}
}

// ListenAndServe blocks serving on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("status server listening")
	return s.srv.ListenAndServe(addr)
}

// Shutdown stops the listener and waits for open requests.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

func (s *Server) handleStatus(c fiber.Ctx) error {
	return c.JSON(s.reporter.Status())
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	st := s.reporter.Status()
	if st.State != types.StateConnected.String() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"healthy": false,
			"state":   st.State,
		})
	}
	return c.JSON(fiber.Map{
		"healthy": true,
		"state":   st.State,
	})
}
