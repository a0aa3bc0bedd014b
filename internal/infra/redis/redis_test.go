//go:build !integration

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
)

// memClient is an in-process RedisClient.
type memClient struct {
	mu       sync.Mutex
	kv       map[string]string
	counters map[string]int64
	lists    map[string][]string
}

func newMemClient() *memClient {
	return &memClient{kv: map[string]string{}, counters: map[string]int64{}, lists: map[string][]string{}}
}

func (m *memClient) Ping(context.Context) error { return nil }
func (m *memClient) Close() error               { return nil }

func (m *memClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = toString(value)
	return nil
}

func (m *memClient) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kv[key]; ok {
		return false, nil
	}
	m.kv[key] = toString(value)
	return true, nil
}

func (m *memClient) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (m *memClient) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memClient) Expire(context.Context, string, time.Duration) error { return nil }

func (m *memClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

func (m *memClient) DelIfEquals(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv[key] != value {
		return false, nil
	}
	delete(m.kv, key)
	return true, nil
}

func (m *memClient) LPush(_ context.Context, key string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{toString(v)}, m.lists[key]...)
	}
	return nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(newMemClient())
	key := CheckoutKey("student-1")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d: expected allowed, got %v %v", i+1, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if ok {
		t.Error("fourth call should be rejected")
	}
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(newMemClient())
	l.wait = time.Millisecond

	token, err := l.TryLock(ctx, "lock:pix_expiry", time.Minute)
	if err != nil {
		t.Fatalf("expected lock, got %v", err)
	}
	if _, err := l.TryLock(ctx, "lock:pix_expiry", time.Minute); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for held lock, got %v", err)
	}
	if err := l.Unlock(ctx, "lock:pix_expiry", "someone-else"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryLock(ctx, "lock:pix_expiry", time.Minute); !errors.Is(err, domain.ErrConflict) {
		t.Fatal("unlock with a foreign token must not release the lock")
	}
	if err := l.Unlock(ctx, "lock:pix_expiry", token); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TryLock(ctx, "lock:pix_expiry", time.Minute); err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
}

func TestNotificationOutbox(t *testing.T) {
	cli := newMemClient()
	ob := NewNotificationOutbox(cli)
	n := model.Notification{Kind: model.NotificationPaymentConfirmed, StudentID: "s1", SubscriptionID: "sub1"}

	if err := ob.Notify(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	items := cli.lists[NotificationQueue]
	if len(items) != 1 {
		t.Fatalf("expected 1 queued notification, got %d", len(items))
	}
	var got model.Notification
	if err := json.Unmarshal([]byte(items[0]), &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != n.Kind || got.SubscriptionID != "sub1" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestCheckoutLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewCheckoutLimiter(newMemClient(), 1, time.Minute)
	if ok, _ := l.AllowCheckout(ctx, "s1"); !ok {
		t.Fatal("first checkout should pass")
	}
	if ok, _ := l.AllowCheckout(ctx, "s1"); ok {
		t.Error("second checkout should be throttled")
	}
	if ok, _ := l.AllowCheckout(ctx, "s2"); !ok {
		t.Error("budget is per student")
	}
}

func TestOnceMarker(t *testing.T) {
	ctx := context.Background()
	m := NewOnceMarker(newMemClient())
	first, _ := m.MarkOnce(ctx, "reminder:sub1", time.Hour)
	second, _ := m.MarkOnce(ctx, "reminder:sub1", time.Hour)
	if !first || second {
		t.Errorf("expected true then false, got %v %v", first, second)
	}
}
