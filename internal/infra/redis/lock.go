package redis

import (
	"context"
	"time"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/ports/adapter"

	"github.com/google/uuid"
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RedisLocker is a single-instance SET NX lock. Background jobs take it so
// only one replica runs a sweep at a time.
type RedisLocker struct {
	cli   RedisClient
	tries int
	wait  time.Duration
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c, tries: 3, wait: 50 * time.Millisecond}
}

// TryLock returns domain.ErrConflict when another holder owns key.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl)
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrConflict
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, key, token)
	return err
}

var _ adapter.OnceMarker = (*OnceMarker)(nil)

// OnceMarker deduplicates side effects such as reminders across replicas.
type OnceMarker struct {
	cli RedisClient
}

func NewOnceMarker(c RedisClient) *OnceMarker {
	return &OnceMarker{cli: c}
}

func (m *OnceMarker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.cli.SetNX(ctx, "once:"+key, "1", ttl)
}
