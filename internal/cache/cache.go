// Package cache is a Redis-backed cache for generated game reports.
// Reports are keyed by session key plus the last replayed sequence number,
// so a cached entry can never serve stale stats: any new event changes the
// key. Caching is best-effort; a missing or unreachable Redis degrades to
// regenerating the report.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a report entry survives; keys rotate with
// every event anyway, so the TTL only reclaims abandoned entries.
const DefaultTTL = 24 * time.Hour

// ReportCache stores serialized game reports in Redis.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at redisURL and verifies the connection.
func New(redisURL string, ttl time.Duration) (*ReportCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis URL: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}

	return &ReportCache{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *ReportCache) Close() error {
	return c.client.Close()
}

// HealthCheck pings Redis to verify the connection.
func (c *ReportCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func key(sessionKey string, lastSeq int64) string {
	return fmt.Sprintf("courtside:report:%s:%d", sessionKey, lastSeq)
}

// Get returns the cached report payload, or (nil, false) on a miss.
func (c *ReportCache) Get(ctx context.Context, sessionKey string, lastSeq int64) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, key(sessionKey, lastSeq)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get report: %w", err)
	}
	return raw, true, nil
}

// Set stores a report payload under the session's current sequence number.
func (c *ReportCache) Set(ctx context.Context, sessionKey string, lastSeq int64, payload []byte) error {
	if err := c.client.Set(ctx, key(sessionKey, lastSeq), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set report: %w", err)
	}
	return nil
}

// Invalidate drops every cached report for a session.
func (c *ReportCache) Invalidate(ctx context.Context, sessionKey string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("courtside:report:%s:*", sessionKey), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan report keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: delete report keys: %w", err)
	}
	return nil
}
