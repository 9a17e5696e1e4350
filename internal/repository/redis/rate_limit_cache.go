package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kyc-service/internal/client"
	"kyc-service/internal/util"
)

const ipRateLimitPrefix = "kyc:ip_rate_limit:"

// RateLimitCache throttles raw request volume per client IP at the edge,
// before the per-user verification limits apply. Counters live in Redis so
// the limit holds across replicas. Redis being down fails open: the
// per-user and per-face limiters still protect the verification flow.
type RateLimitCache struct {
	client *client.RedisClient
	limit  int
	window time.Duration
}

func NewRateLimitCache(redisClient *client.RedisClient, limit int, window time.Duration) *RateLimitCache {
	return &RateLimitCache{
		client: redisClient,
		limit:  limit,
		window: window,
	}
}

// AllowIP counts one request from ipAddress and reports whether it is
// within the per-window limit.
func (c *RateLimitCache) AllowIP(ipAddress string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := ipRateLimitPrefix + ipAddress
	count, err := c.client.IncrWithExpire(ctx, key, c.window)
	if err != nil {
		util.Error("Failed to increment IP rate limit counter",
			zap.String("ip", ipAddress),
			zap.Error(err))
		return true, fmt.Errorf("failed to increment IP rate limit counter: %w", err)
	}

	if count > int64(c.limit) {
		util.Warn("IP rate limit exceeded",
			zap.String("ip", ipAddress),
			zap.Int64("count", count),
			zap.Int("limit", c.limit))
		return false, nil
	}

	return true, nil
}

// ResetIP clears the counter for one IP.
func (c *RateLimitCache) ResetIP(ipAddress string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, ipRateLimitPrefix+ipAddress); err != nil {
		return fmt.Errorf("failed to reset IP rate limit counter: %w", err)
	}
	return nil
}

// RetryAfter reports how long until the counter for an IP expires.
func (c *RateLimitCache) RetryAfter(ipAddress string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ttl, err := c.client.TTL(ctx, ipRateLimitPrefix+ipAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to read IP rate limit TTL: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
