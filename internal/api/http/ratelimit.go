package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

// RateLimiter throttles task creation per client address using a fixed
// window counter in Redis. A Redis outage does not block writes; the
// limiter fails open and logs.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	max    int
	window time.Duration
}

// NewRateLimiter constructs the limiter.
func NewRateLimiter(client *redis.Client, logger *zap.Logger, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, logger: logger, max: max, window: window}
}

// LimitTaskCreation is the fiber middleware guarding POST /api/tasks.
func (r *RateLimiter) LimitTaskCreation(c *fiber.Ctx) error {
	if r.client == nil || r.max <= 0 {
		return c.Next()
	}

	key := fmt.Sprintf("ratelimit:task-create:%s", c.IP())
	ctx := c.Context()

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
		return c.Next()
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			r.logger.Warn("failed to set rate limit window", zap.Error(err))
		}
	}
	if count > int64(r.max) {
		return apperrors.NewRateLimited("Too many tasks created, please try again later")
	}
	return c.Next()
}
