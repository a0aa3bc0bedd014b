package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*AsyncNotifier)(nil)

// AsyncNotifier hands notifications to the pool so delivery never delays the
// request that triggered it. Delivery failures are logged and dropped.
type AsyncNotifier struct {
	inner   adapter.Notifier
	pool    *Pool
	timeout time.Duration
	log     *zerolog.Logger
}

func NewAsyncNotifier(inner adapter.Notifier, pool *Pool, logger *zerolog.Logger) *AsyncNotifier {
	l := logger.With().Str("component", "notifier").Logger()
	return &AsyncNotifier{inner: inner, pool: pool, timeout: 5 * time.Second, log: &l}
}

func (n *AsyncNotifier) Notify(_ context.Context, msg model.Notification) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	err := n.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return n.inner.Notify(ctx, msg)
	})
	if err != nil {
		n.log.Warn().Err(err).
			Str("kind", string(msg.Kind)).
			Str("student_id", msg.StudentID).
			Msg("notification dropped")
	}
	return err
}
