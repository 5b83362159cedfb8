package redis

import "strings"

// Keyspace prefixes every key this service writes.
type Keyspace string

const DefaultKeyspace Keyspace = "ecom"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	inFlightPrefix    = "inflight"
)

// Key joins the non-empty parts under the keyspace with ':'.
func (k Keyspace) Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keyspace().Key(idempotencyPrefix, scope, id)
}

func (c *Client) InFlightKey(scope, id string) string {
	return c.keyspace().Key(inFlightPrefix, scope, id)
}

func (c *Client) keyspace() Keyspace {
	if c == nil || c.keys == "" {
		return DefaultKeyspace
	}
	return c.keys
}
