package redis

import (
	"context"
	"strconv"
	"time"
)

// FixedWindowAllow counts one hit against scope in the current window and
// reports whether the count is still within limit. Each window gets its own
// key, so a counter that lost its TTL can never outlive the window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	if window <= 0 {
		window = time.Minute
	}
	key := c.RateLimitKey(scope, c.now(), window)
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return true, count, err
		}
	}
	return count <= limit, count, nil
}

// RateLimitKey names the counter for scope in the window containing at.
func (c *Client) RateLimitKey(scope string, at time.Time, window time.Duration) string {
	bucket := at.UnixNano() / int64(window)
	return c.keyspace().Key(rateLimitPrefix, scope, strconv.FormatInt(bucket, 10))
}

// AcquireInFlight claims the marker for scope/id and reports false when another
// holder already owns it. ttl bounds how long a crashed holder blocks others.
func (c *Client) AcquireInFlight(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, c.InFlightKey(scope, id), c.now().UTC().Format(time.RFC3339Nano), ttl)
}

func (c *Client) ReleaseInFlight(ctx context.Context, scope, id string) error {
	return c.Del(ctx, c.InFlightKey(scope, id))
}
