package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/health"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

// Default listener settings.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1MB
)

// ErrNotRunning is returned when stopping a server that is not serving.
var ErrNotRunning = errors.New("server is not running")

// ginModeOnce ensures gin.SetMode is only called once to avoid races.
var ginModeOnce sync.Once

// Config holds the listener configuration.
type Config struct {
	Address         string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MetricsPath exposes the metrics registry when metrics are set.
	// Empty disables the endpoint.
	MetricsPath string

	// LivenessPath and ReadinessPath expose the probes when a health
	// handler is set. Empty disables the probe.
	LivenessPath  string
	ReadinessPath string
}

// errorResponse is the JSON body of responses generated by the server.
type errorResponse struct {
	Error string `json:"error"`
}

// Server serves HTTP requests through a replaceable router.
type Server struct {
	config     Config
	engine     *gin.Engine
	router     atomic.Pointer[router.Router]
	httpServer *http.Server
	listener   net.Listener
	running    atomic.Bool
	mu         sync.Mutex

	logger  observability.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	health  *health.Handler
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables request metrics and the metrics endpoint.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithHealth enables the liveness and readiness probes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// New creates a server dispatching to r.
func New(cfg Config, r *router.Router, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, util.NewConfigError("router", "router is required")
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		config: cfg,
		logger: observability.NopLogger(),
		tracer: otel.Tracer("github.com/vyrodovalexey/avaroute/internal/server"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.config.ShutdownTimeout <= 0 {
		s.config.ShutdownTimeout = DefaultShutdownTimeout
	}

	s.router.Store(r)
	s.setupEngine()

	return s, nil
}

// setupEngine builds the gin engine. GET requests for the metrics and probe
// paths are owned by the server; every other request falls through to
// NoRoute and is dispatched by the router.
func (s *Server) setupEngine() {
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = false

	engine.Use(recovery(s.logger), requestID(), tracing(s.tracer), accessLog(s.logger))
	if s.metrics != nil {
		engine.Use(instrument(s.metrics))
		if s.config.MetricsPath != "" {
			engine.GET(s.config.MetricsPath, gin.WrapH(s.metrics.Handler()))
		}
	}

	if s.health != nil {
		s.health.RegisterRoutes(engine, s.config.LivenessPath, s.config.ReadinessPath)
	}

	engine.NoRoute(s.dispatch)

	s.engine = engine
}

// dispatch hands the request to the current router and translates the
// outcome.
func (s *Server) dispatch(c *gin.Context) {
	path := c.Request.URL.Path
	method := c.Request.Method

	match, err := s.router.Load().Dispatch(path, newExchange(c))
	c.Set(outcomeKey, match.String())

	logger := s.logger.WithContext(c.Request.Context())

	if err != nil {
		status, message := errorStatus(err)
		fields := []observability.Field{
			observability.String("method", method),
			observability.String("path", path),
			observability.Int("status", status),
			observability.Error(err),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Warn("request rejected by handler", fields...)
		}
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(status, errorResponse{Error: message})
		}
		return
	}

	switch match {
	case router.Success:
		return
	case router.WrongMethod:
		notAllowed := util.NewMethodNotAllowedError(method, path)
		logger.Debug("method not allowed", observability.Error(notAllowed))
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: notAllowed.Error()})
	default:
		notFound := util.NewRouteNotFoundError(method, path)
		logger.Debug("route not found", observability.Error(notFound))
		c.JSON(http.StatusNotFound, errorResponse{Error: notFound.Error()})
	}
}

// errorStatus maps a handler error to a response status and message.
// Client errors keep their message; anything else is a 500.
func errorStatus(err error) (int, string) {
	if !util.IsClientError(err) {
		return http.StatusInternalServerError, "internal server error"
	}

	switch {
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, util.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, err.Error()
	default:
		return http.StatusBadRequest, err.Error()
	}
}

// SetRouter replaces the router. Requests in flight finish on the previous
// one.
func (s *Server) SetRouter(r *router.Router) {
	if r == nil {
		return
	}
	s.router.Store(r)
}

// Router returns the current router.
func (s *Server) Router() *router.Router {
	return s.router.Load()
}

// Handler returns the HTTP handler serving all requests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
}

// Addr returns the bound address while running, the configured one
// otherwise.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.Address()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("server already running on %s", s.listener.Addr())
	}

	addr := s.Address()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
	s.listener = ln
	s.running.Store(true)

	s.logger.Info("server started",
		observability.String("address", ln.Addr().String()),
		observability.Duration("readTimeout", s.config.ReadTimeout),
		observability.Duration("writeTimeout", s.config.WriteTimeout),
	)

	go s.serve(s.httpServer, ln)

	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server error", observability.Error(err))
	}
	s.running.Store(false)
}

// Stop shuts the server down gracefully, waiting for in-flight requests
// until ctx or the shutdown timeout expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return ErrNotRunning
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("stopping server")

	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil

	if err := srv.Shutdown(ctx); err != nil {
		if closeErr := srv.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	s.running.Store(false)
	s.logger.Info("server stopped")

	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}
