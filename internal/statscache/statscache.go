// Package statscache publishes per-tick delivery summaries to Redis so
// multiple queue processor hosts draining the same or related spools can
// observe aggregate throughput without scraping each other's Prometheus
// endpoints. It is an optional accelerator: nothing in the delivery or
// spool correctness path depends on it being reachable.
package statscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sendmail:tick:"

// Summary is one processor tick's outcome counts.
type Summary struct {
	Success   int   `json:"success"`
	Transient int   `json:"transient"`
	Permanent int   `json:"permanent"`
	Skipped   int   `json:"skipped"`
	Timestamp int64 `json:"timestamp"`
}

// Cache publishes and retrieves per-spool tick summaries.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Cache backed by the Redis server at addr. ttl bounds how
// long a published summary survives before Redis expires it; a reader
// that finds no key simply means no host has ticked that spool recently.
func New(addr string, ttl time.Duration) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// PublishTick stores s as the latest summary for spoolPath.
func (c *Cache) PublishTick(ctx context.Context, spoolPath string, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("statscache: marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+spoolPath, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("statscache: publish tick for %s: %w", spoolPath, err)
	}
	return nil
}

// PublishTickCounts builds a Summary from raw outcome counts, stamps it
// with the current time, and publishes it. It satisfies the narrow
// StatsPublisher interface the queue processor depends on, so that
// package never needs to import this one's types.
func (c *Cache) PublishTickCounts(ctx context.Context, spoolPath string, success, transient, permanent, skipped int) error {
	return c.PublishTick(ctx, spoolPath, Summary{
		Success:   success,
		Transient: transient,
		Permanent: permanent,
		Skipped:   skipped,
		Timestamp: time.Now().Unix(),
	})
}

// LatestTick returns the most recently published summary for spoolPath.
// redis.Nil (wrapped) is returned when no summary has been published, or
// it has expired.
func (c *Cache) LatestTick(ctx context.Context, spoolPath string) (Summary, error) {
	data, err := c.client.Get(ctx, keyPrefix+spoolPath).Bytes()
	if err != nil {
		return Summary{}, fmt.Errorf("statscache: get tick for %s: %w", spoolPath, err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("statscache: unmarshal summary: %w", err)
	}
	return s, nil
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
