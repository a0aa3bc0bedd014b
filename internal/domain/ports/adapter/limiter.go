package adapter

import (
	"context"
	"time"
)

// CheckoutLimiter throttles checkout attempts per student.
type CheckoutLimiter interface {
	AllowCheckout(ctx context.Context, studentID string) (bool, error)
}

// OnceMarker reports true only for the first caller that marks key within ttl.
type OnceMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
