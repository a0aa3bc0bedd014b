//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	unlocked int
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return "", domain.ErrConflict
	}
	l.held[key] = true
	return "tok", nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.unlocked++
	return nil
}

type fakePix struct {
	expired    atomic.Int64
	reconciled atomic.Int64
	err        error
}

func (p *fakePix) ExpireOverdue(context.Context, time.Time) (int64, error) {
	p.expired.Add(1)
	return 2, p.err
}

func (p *fakePix) ReconcilePending(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	p.reconciled.Add(1)
	if olderThan <= 0 || limit <= 0 {
		return 0, errors.New("bad arguments")
	}
	return 1, p.err
}

type fakeReminder struct{ days []int }

func (r *fakeReminder) RemindExpiring(_ context.Context, withinDays int) (int, error) {
	r.days = append(r.days, withinDays)
	return 0, nil
}

type fakeCounter struct{ calls int }

func (c *fakeCounter) CountByStatus(context.Context) (map[model.SubscriptionStatus]int, error) {
	c.calls++
	return map[model.SubscriptionStatus]int{model.SubscriptionStatusActive: 3}, nil
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestJob_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("skips when another instance holds the lock", func(t *testing.T) {
		locker := &fakeLocker{held: map[string]bool{"lock:job:busy": true}}
		called := false
		j := NewJob("busy", time.Second, func(context.Context) error { called = true; return nil }, locker, nopLogger())

		ran, err := j.RunOnce(ctx)
		if err != nil || ran || called {
			t.Fatalf("expected a skipped run, got ran=%v called=%v err=%v", ran, called, err)
		}
	})

	t.Run("releases the lock after the run", func(t *testing.T) {
		locker := &fakeLocker{}
		boom := errors.New("boom")
		j := NewJob("failing", time.Second, func(context.Context) error { return boom }, locker, nopLogger())

		ran, err := j.RunOnce(ctx)
		if !ran || !errors.Is(err, boom) {
			t.Fatalf("expected ran with boom, got ran=%v err=%v", ran, err)
		}
		if locker.unlocked != 1 || len(locker.held) != 0 {
			t.Errorf("expected the lock to be released, held=%v", locker.held)
		}
	})

	t.Run("bounds each run with a deadline", func(t *testing.T) {
		j := NewJob("deadline", 10*time.Millisecond, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, nil, nopLogger())

		_, err := j.RunOnce(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestJob_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	j := NewJob("loop", 5*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 3 {
			cancel()
		}
		return nil
	}, nil, nopLogger())

	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop")
	}
	if runs.Load() < 3 {
		t.Errorf("expected at least 3 runs, got %d", runs.Load())
	}
}

func TestWorkers(t *testing.T) {
	ctx := context.Background()

	t.Run("expiry worker sweeps overdue intents", func(t *testing.T) {
		pix := &fakePix{}
		w := NewExpiryWorker(time.Minute, pix, &fakeLocker{}, nopLogger())
		if ran, err := w.RunOnce(ctx); !ran || err != nil {
			t.Fatalf("unexpected result ran=%v err=%v", ran, err)
		}
		if pix.expired.Load() != 1 {
			t.Errorf("expected one sweep, got %d", pix.expired.Load())
		}
	})

	t.Run("reconciler passes its window and batch", func(t *testing.T) {
		pix := &fakePix{}
		w := NewPaymentReconciler(pix, time.Minute, 0, nil, nopLogger())
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("expected defaults to apply, got %v", err)
		}
		if w.staleAfter != 10*time.Minute || pix.reconciled.Load() != 1 {
			t.Errorf("unexpected state stale=%v calls=%d", w.staleAfter, pix.reconciled.Load())
		}
	})

	t.Run("reminder worker forwards the window", func(t *testing.T) {
		r := &fakeReminder{}
		w := NewNotificationWorker(time.Hour, 3, r, nil, nopLogger())
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatal(err)
		}
		if len(r.days) != 1 || r.days[0] != 3 {
			t.Errorf("expected one call with 3 days, got %v", r.days)
		}
	})

	t.Run("gauge worker tolerates a missing pool", func(t *testing.T) {
		c := &fakeCounter{}
		w := NewGaugeWorker(time.Minute, c, nil, nopLogger())
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatal(err)
		}
		if c.calls != 1 {
			t.Errorf("expected one count, got %d", c.calls)
		}
	})
}
