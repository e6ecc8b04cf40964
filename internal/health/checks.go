package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avaroute/internal/router"
)

// ErrNoRegistrations is reported by RouterCheck for an empty router.
var ErrNoRegistrations = errors.New("router has no filters, routes or static roots")

// RouterCheck fails while the router returned by current has nothing
// registered, since every request would then be answered with 404.
func RouterCheck(current func() *router.Router) Check {
	return CheckFunc("router", func(_ context.Context) error {
		r := current()
		if r == nil || r.Len() == 0 {
			return ErrNoRegistrations
		}
		return nil
	})
}

// RedisCheck pings client.
func RedisCheck(name string, client redis.Cmdable) Check {
	return CheckFunc(name, func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	})
}
