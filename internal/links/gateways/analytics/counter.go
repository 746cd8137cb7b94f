// Package analytics records which domains were rejected for each tenant.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haukened/linkguard/internal/links/services/policy"
)

// DefaultPrefix namespaces the per-tenant counter hashes.
const DefaultPrefix = "linkguard:blocked"

// RedisOptions configures a RedisCounter.
type RedisOptions struct {
	// Address is the host:port of the Redis server.
	Address  string
	Password string
	DB       int
	// Prefix is prepended to the tenant id to form the hash key.
	Prefix string
	// Timeout bounds dialing, reads and writes.
	Timeout time.Duration
}

// RedisCounter increments a per-tenant hash of blocked domain counts:
//
//	HINCRBY <prefix>:<tenant> <domain> 1
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter creates a counter. No connection is made until first use.
func NewRedisCounter(opts RedisOptions) *RedisCounter {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
		// increments are best-effort; a failed one is dropped, not retried
		MaxRetries: -1,
	})
	return &RedisCounter{client: client, prefix: opts.Prefix}
}

// RecordBlocked increments the counter for domain under tenantID.
func (c *RedisCounter) RecordBlocked(ctx context.Context, tenantID, domain string) error {
	if err := c.client.HIncrBy(ctx, c.key(tenantID), domain, 1).Err(); err != nil {
		return fmt.Errorf("hincrby %s: %w", c.key(tenantID), err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) key(tenantID string) string {
	return c.prefix + ":" + tenantID
}

// NopCounter discards every increment. It is used when no Redis address is configured.
type NopCounter struct{}

func (NopCounter) RecordBlocked(context.Context, string, string) error { return nil }

var (
	_ policy.BlockCounter = (*RedisCounter)(nil)
	_ policy.BlockCounter = NopCounter{}
)
