package filter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// Rate limiter defaults.
const (
	// DefaultClientTTL is how long an idle client keeps its bucket.
	DefaultClientTTL = 10 * time.Minute

	// MinCleanupInterval is the minimum interval for cleanup operations.
	MinCleanupInterval = 10 * time.Second

	// MaxCleanupInterval is the maximum interval for cleanup operations.
	MaxCleanupInterval = time.Minute
)

// clientEntry holds a client's limiter and its last access time.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimit rejects requests over a token-bucket budget, either shared by
// all clients or kept per client IP.
//
// With a RedisStore the budget is counted in Redis instead, so it is shared
// by every instance. The local buckets take over while Redis is failing.
type RateLimit struct {
	base

	store       *RedisStore
	windowLimit int

	limiter   *rate.Limiter
	perClient bool
	clients   map[string]*clientEntry
	mu        sync.Mutex
	rps       float64
	burst     int
	clientTTL time.Duration
	stopCh    chan struct{}
	stopped   bool
}

// NewRateLimit creates a rate limit filter allowing rps requests per second
// with the given burst.
func NewRateLimit(rps float64, burst int, perClient bool, opts ...Option) *RateLimit {
	return &RateLimit{
		base:      newBase(opts),
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		clients:   make(map[string]*clientEntry),
		rps:       rps,
		burst:     burst,
		clientTTL: DefaultClientTTL,
		stopCh:    make(chan struct{}),
	}
}

// NewRedisRateLimit creates a rate limit filter counting in store. The
// budget is rps requests per second, rounded to whole requests per store
// window.
func NewRedisRateLimit(store *RedisStore, rps float64, burst int, perClient bool, opts ...Option) *RateLimit {
	rl := NewRateLimit(rps, burst, perClient, opts...)
	rl.store = store
	rl.windowLimit = windowLimit(rps, store.Window())
	return rl
}

// Allow reports whether a request from clientIP is within budget.
func (rl *RateLimit) Allow(clientIP string) bool {
	allowed, _ := rl.allow(context.Background(), clientIP)
	return allowed
}

// allow checks the budget and returns how long a rejected client should wait.
func (rl *RateLimit) allow(ctx context.Context, clientIP string) (bool, time.Duration) {
	if rl.store != nil {
		key := globalKey
		if rl.perClient {
			key = clientIP
		}

		allowed, retryAfter, err := rl.store.Allow(ctx, key, rl.windowLimit)
		if err == nil {
			return allowed, retryAfter
		}

		rl.metrics.recordStoreFallback()
		rl.logger.Debug("rate limit store failed, using local limiter",
			observability.String("client_ip", clientIP),
			observability.Error(err),
		)
	}

	if rl.perClient {
		return rl.allowPerClient(clientIP), rl.retryAfter()
	}
	return rl.limiter.Allow(), rl.retryAfter()
}

func (rl *RateLimit) allowPerClient(clientIP string) bool {
	now := time.Now()

	rl.mu.Lock()
	entry, exists := rl.clients[clientIP]
	if !exists {
		entry = &clientEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.clients[clientIP] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// Apply implements router.Filter.
func (rl *RateLimit) Apply(uri string, ex router.Exchange) (router.Match, error) {
	ctx := context.Background()
	if req := ex.Request(); req != nil {
		ctx = req.Context()
	}

	ip := clientIP(ex)
	allowed, wait := rl.allow(ctx, ip)
	if allowed {
		return router.WrongURL, nil
	}

	rl.logger.Warn("rate limit exceeded",
		observability.String("client_ip", ip),
		observability.String("path", uri),
	)

	ex.Header().Set(HeaderRetryAfter, strconv.Itoa(retrySeconds(wait)))
	return rl.reject(nameRateLimit, "rate_limited", ex, http.StatusTooManyRequests, "rate limit exceeded")
}

// retryAfter returns the time until one local token is available.
func (rl *RateLimit) retryAfter() time.Duration {
	if rl.rps <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / rl.rps)
}

// retrySeconds rounds wait down to whole seconds, at least 1.
func retrySeconds(wait time.Duration) int {
	seconds := int(math.Floor(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// CleanupOldClients removes client limiters idle for longer than maxAge.
func (rl *RateLimit) CleanupOldClients(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > maxAge {
			delete(rl.clients, ip)
			removed++
		}
	}

	if removed > 0 {
		rl.logger.Debug("cleaned up expired rate limiter entries",
			observability.Int("removed", removed),
			observability.Int("remaining", len(rl.clients)),
		)
	}
}

// StartAutoCleanup periodically evicts idle clients until Stop is called.
func (rl *RateLimit) StartAutoCleanup() {
	rl.mu.Lock()
	if rl.stopped || !rl.perClient {
		rl.mu.Unlock()
		return
	}
	rl.mu.Unlock()

	interval := rl.clientTTL / 2
	if interval > MaxCleanupInterval {
		interval = MaxCleanupInterval
	}
	if interval < MinCleanupInterval {
		interval = MinCleanupInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.CleanupOldClients(rl.clientTTL)
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimit) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		rl.stopped = true
		close(rl.stopCh)
	}
}

// Close implements io.Closer.
func (rl *RateLimit) Close() error {
	rl.Stop()
	return nil
}

// String describes the filter for route listings.
func (rl *RateLimit) String() string {
	scope := "global"
	if rl.perClient {
		scope = "per-client"
	}
	if rl.store != nil {
		scope += " redis"
	}
	return nameRateLimit + " " + scope
}
