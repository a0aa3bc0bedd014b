package redis

import (
	"context"
	"fmt"
	"time"

	"elearning-billing/internal/domain/ports/adapter"
)

// RateLimiter is a fixed-window counter.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func CheckoutKey(studentID string) string {
	return fmt.Sprintf("rate_limit:checkout:%s", studentID)
}

var _ adapter.CheckoutLimiter = (*CheckoutLimiter)(nil)

// CheckoutLimiter applies the configured checkout budget per student.
type CheckoutLimiter struct {
	rl     *RateLimiter
	limit  int
	window time.Duration
}

func NewCheckoutLimiter(client RedisClient, limit int, window time.Duration) *CheckoutLimiter {
	return &CheckoutLimiter{rl: NewRateLimiter(client), limit: limit, window: window}
}

func (c *CheckoutLimiter) AllowCheckout(ctx context.Context, studentID string) (bool, error) {
	return c.rl.Allow(ctx, CheckoutKey(studentID), c.limit, c.window)
}
