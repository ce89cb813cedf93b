package pkg

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Errors
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

const limiterRetryInterval = 10 * time.Millisecond

// DistributedLimiter combines local rate.Limiter with Redis for global enforcement across relay replicas.
// A nil redis client keeps enforcement local to the process.
type DistributedLimiter struct {
	localLimiter *rate.Limiter
	redisClient  *redis.Client
	key          string        // e.g: "fraud_relay:scoring_rate"
	ttl          time.Duration // counter window; the global budget is burst calls per window
	logger       *zap.Logger
}

// NewDistributedLimiter creates a limiter; if globalRate=0, it's unlimited.
func NewDistributedLimiter(redisClient *redis.Client, key string, globalRate, burst int, ttl time.Duration, logger *zap.Logger) *DistributedLimiter {
	var local *rate.Limiter
	if globalRate > 0 {
		if burst < 1 {
			burst = 1
		}
		local = rate.NewLimiter(rate.Limit(globalRate), burst)
	}
	return &DistributedLimiter{
		localLimiter: local,
		redisClient:  redisClient,
		key:          key,
		ttl:          ttl,
		logger:       logger,
	}
}

// Allow checks if a token is available; uses Redis for distributed increment.
func (d *DistributedLimiter) Allow(ctx context.Context) bool {
	if d.localLimiter == nil {
		return true // Unlimited
	}

	// Local check first (fast path)
	if !d.localLimiter.Allow() {
		return false
	}
	if d.redisClient == nil {
		return true
	}

	// Distributed check via Redis atomic increment
	pipe := d.redisClient.Pipeline()
	incr := pipe.Incr(ctx, d.key)
	pipe.ExpireNX(ctx, d.key, d.ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		d.logger.Warn("redis_rate_limit_error_falling_back_to_local", zap.Error(err))
		return true
	}

	count := incr.Val()
	if count > int64(d.localLimiter.Burst()) {
		d.logger.Debug("global_rate_limit_exceeded", zap.String("key", d.key), zap.Int64("count", count))
		return false
	}
	return true
}

// Wait blocks until Allow succeeds, ctx is done, or maxWait elapses.
// It returns ErrRateLimitExceeded when the throttle guard trips.
func (d *DistributedLimiter) Wait(ctx context.Context, maxWait time.Duration) error {
	if d.Allow(ctx) {
		return nil
	}
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	tick := time.NewTicker(limiterRetryInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrRateLimitExceeded
		case <-tick.C:
			if d.Allow(ctx) {
				return nil
			}
		}
	}
}
