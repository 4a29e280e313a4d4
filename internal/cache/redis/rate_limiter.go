package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbot-io/arbot/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

const waitPollInterval = 50 * time.Millisecond

// VenueLimit is the per-venue outbound request budget.
type VenueLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter implements domain.RateLimiter with a sliding window backed by
// Redis sorted sets and an atomic Lua script. Because the window lives in
// Redis, the limit holds across all processes talking to the same venue.
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script
	limits        map[string]VenueLimit
	fallback      VenueLimit
}

// NewRateLimiter creates a RateLimiter with per-venue limits. Venues missing
// from limits use the fallback budget.
func NewRateLimiter(c *Client, limits map[string]VenueLimit, fallback VenueLimit) *RateLimiter {
	if fallback.Requests <= 0 {
		fallback = VenueLimit{Requests: 10, Window: time.Second}
	}
	normalized := make(map[string]VenueLimit, len(limits))
	for venue, lim := range limits {
		normalized[strings.ToLower(venue)] = lim
	}
	return &RateLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
		limits:        normalized,
		fallback:      fallback,
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + strings.ToLower(key)
}

// Allow checks whether a request for the given key is permitted under the
// sliding window. The request is counted when permitted.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()
	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		now,
		window.Microseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}
	return result[0] == 1, nil
}

// Wait blocks until a request for the venue is allowed under its configured
// budget, polling at a fixed interval. It returns the context error on
// cancellation.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	lim, ok := rl.limits[strings.ToLower(key)]
	if !ok {
		lim = rl.fallback
	}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		default:
		}

		allowed, err := rl.Allow(ctx, key, lim.Requests, lim.Window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
