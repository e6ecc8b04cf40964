package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// DefaultProbeTimeout bounds a readiness probe.
const DefaultProbeTimeout = 5 * time.Second

// Probe results.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Check is a named readiness check.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c *checkFunc) Name() string                    { return c.name }
func (c *checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckFunc creates a check from a function.
func CheckFunc(name string, fn func(ctx context.Context) error) Check {
	return &checkFunc{name: name, fn: fn}
}

// Status is the body of a probe response.
type Status struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Uptime    string                  `json:"uptime,omitempty"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Handler serves probe requests.
type Handler struct {
	checks    []registeredCheck
	logger    observability.Logger
	metrics   *Metrics
	timeout   time.Duration
	startTime time.Time
	mu        sync.RWMutex
}

// Option is a functional option for configuring the handler.
type Option func(*Handler)

// WithLogger sets the logger for failed checks.
func WithLogger(logger observability.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics sets the probe metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithTimeout sets the readiness probe timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// NewHandler creates a probe handler without checks.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		logger:    observability.NopLogger(),
		timeout:   DefaultProbeTimeout,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// registeredCheck is a check and whether its failure fails readiness.
type registeredCheck struct {
	check    Check
	critical bool
}

// AddCheck adds a readiness check. A failing check fails readiness.
func (h *Handler) AddCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, registeredCheck{check: check, critical: true})
}

// AddOptionalCheck adds a check whose failure only marks readiness as
// degraded; the probe still answers 200.
func (h *Handler) AddOptionalCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, registeredCheck{check: check})
}

// LivenessHandler answers whether the process is serving.
func (h *Handler) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.recordProbe("liveness")
		c.JSON(http.StatusOK, Status{
			Status:    StatusOK,
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		})
	}
}

// ReadinessHandler answers whether every check passes.
func (h *Handler) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.recordProbe("readiness")

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		status := h.runChecks(ctx)

		code := http.StatusOK
		if status.Status == StatusError {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

// RegisterRoutes mounts the probes on engine. An empty path skips that
// probe.
func (h *Handler) RegisterRoutes(engine *gin.Engine, livenessPath, readinessPath string) {
	if livenessPath != "" {
		engine.GET(livenessPath, h.LivenessHandler())
	}
	if readinessPath != "" {
		engine.GET(readinessPath, h.ReadinessHandler())
	}
}

// runChecks runs all checks concurrently.
func (h *Handler) runChecks(ctx context.Context) *Status {
	h.mu.RLock()
	checks := make([]registeredCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := &Status{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult, len(checks)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(rc registeredCheck) {
			defer wg.Done()

			start := time.Now()
			err := rc.check.Check(ctx)
			duration := time.Since(start)

			result := &CheckResult{Status: StatusOK, Duration: duration.String()}
			if err != nil {
				result.Status = StatusError
				result.Error = err.Error()

				h.logger.Warn("readiness check failed",
					observability.String("check", rc.check.Name()),
					observability.Error(err),
					observability.Duration("duration", duration),
				)
			}
			h.metrics.recordCheck(rc.check.Name(), err == nil)

			mu.Lock()
			status.Checks[rc.check.Name()] = result
			switch {
			case err == nil:
			case rc.critical:
				status.Status = StatusError
			case status.Status == StatusOK:
				status.Status = StatusDegraded
			}
			mu.Unlock()
		}(check)
	}

	wg.Wait()
	return status
}
