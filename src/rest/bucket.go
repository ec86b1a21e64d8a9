package rest

import (
	"time"

	"github.com/skua-io/skua/src/wire"
)

// bucket tracks the server-side quota shared by the routes mapped to it.
// resetAt is derived from Reset-After when present, falling back to the epoch
// Reset header.
type bucket struct {
	routeKey string
	major    string
	rl       wire.RateLimit
	resetAt  time.Time
}

type bucketKey struct {
	id    string
	major string
}

// bucketFor returns the bucket for a route/major pair, creating it lazily.
// Lookup prefers the server-assigned bucket id learned for this route so that
// routes sharing a bucket also share its quota. Caller holds c.mu.
func (c *Client) bucketFor(routeKey, major string) *bucket {
	id := c.routeBuckets[routeKey]
	if id != "" {
		if b := c.bucketsByID[bucketKey{id, major}]; b != nil {
			return b
		}
	}
	if b := c.bucketsByRoute[bucketKey{routeKey, major}]; b != nil {
		return b
	}
	b := &bucket{routeKey: routeKey, major: major}
	b.rl.Bucket = id
	c.bucketsByRoute[bucketKey{routeKey, major}] = b
	if id != "" {
		c.bucketsByID[bucketKey{id, major}] = b
	}
	return b
}

// updateBucket folds one response's rate-limit snapshot into the bucket and
// refreshes the route's bucket-id mapping. Caller holds c.mu.
func (c *Client) updateBucket(b *bucket, rl wire.RateLimit, now time.Time) {
	prev := b.rl.Bucket
	b.rl = rl
	if rl.Bucket == "" {
		b.rl.Bucket = prev
	}
	switch {
	case rl.ResetAfter > 0:
		b.resetAt = now.Add(time.Duration(rl.ResetAfter * float64(time.Second)))
	case rl.Reset > 0:
		b.resetAt = time.Unix(0, int64(rl.Reset*float64(time.Second)))
	}
	if rl.Bucket != "" {
		c.bucketsByID[bucketKey{rl.Bucket, b.major}] = b
		c.routeBuckets[b.routeKey] = rl.Bucket
	}
}
