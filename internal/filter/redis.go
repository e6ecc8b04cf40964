package filter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// Redis store defaults.
const (
	// DefaultRedisPrefix is prepended to every counter key.
	DefaultRedisPrefix = "avaroute:ratelimit:"

	// DefaultRedisWindow is the length of one counting window.
	DefaultRedisWindow = time.Second

	// DefaultRedisTimeout bounds a single counter update.
	DefaultRedisTimeout = 100 * time.Millisecond

	// DefaultBreakerTimeout is how long the breaker stays open.
	DefaultBreakerTimeout = 30 * time.Second

	// breakerFailures is the number of consecutive failures that opens the breaker.
	breakerFailures = 3

	globalKey = "global"
)

// ErrStoreUnavailable is returned when the breaker rejects a counter update.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// RedisStore counts requests in fixed windows shared by every instance
// using the same Redis. Calls go through a circuit breaker; while it is
// open Allow fails fast with ErrStoreUnavailable.
type RedisStore struct {
	client  redis.Cmdable
	prefix  string
	window  time.Duration
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
	now     func() time.Time
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Prefix         string
	Window         time.Duration
	Timeout        time.Duration
	BreakerTimeout time.Duration
	Logger         observability.Logger
}

// NewRedisStore creates a store counting in client.
func NewRedisStore(client redis.Cmdable, cfg RedisStoreConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRedisWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	s := &RedisStore{
		client:  client,
		prefix:  cfg.Prefix,
		window:  cfg.Window,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		now:     time.Now,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-ratelimit",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return s
}

// Window returns the counting window.
func (s *RedisStore) Window() time.Duration {
	return s.window
}

// State returns the breaker state.
func (s *RedisStore) State() gobreaker.State {
	return s.breaker.State()
}

// Allow counts one request for key and reports whether it is within limit
// requests for the current window. When it is not, retryAfter is the time
// left in the window.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int) (allowed bool, retryAfter time.Duration, err error) {
	now := s.now()
	windowIndex := now.UnixNano() / int64(s.window)
	counterKey := s.prefix + key + ":" + strconv.FormatInt(windowIndex, 10)

	result, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		pipe := s.client.TxPipeline()
		incr := pipe.Incr(ctx, counterKey)
		pipe.PExpire(ctx, counterKey, 2*s.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		return incr.Val(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return false, 0, fmt.Errorf("incrementing %s: %w", counterKey, err)
	}

	if result.(int64) <= int64(limit) {
		return true, 0, nil
	}

	windowEnd := time.Unix(0, (windowIndex+1)*int64(s.window))
	return false, windowEnd.Sub(now), nil
}

// windowLimit converts a per-second rate into a per-window request count,
// at least 1.
func windowLimit(rps float64, window time.Duration) int {
	limit := int(math.Round(rps * window.Seconds()))
	if limit < 1 {
		return 1
	}
	return limit
}
