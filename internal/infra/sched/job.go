package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
)

// Locker is the cluster-wide mutex a job takes before each run.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Job runs fn every interval. With a locker, only one replica runs a given tick.
type Job struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fn       func(ctx context.Context) error
	locker   Locker
	log      *zerolog.Logger
}

// NewJob defaults interval to one minute. locker may be nil.
func NewJob(name string, interval time.Duration, fn func(ctx context.Context) error, locker Locker, logger *zerolog.Logger) *Job {
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := interval
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "sched").Str("job", name).Logger()
	return &Job{name: name, interval: interval, timeout: timeout, fn: fn, locker: locker, log: &l}
}

func (j *Job) Name() string { return j.name }

// Run blocks until ctx is cancelled. The first tick runs immediately.
func (j *Job) Run(ctx context.Context) error {
	j.log.Info().Dur("interval", j.interval).Msg("starting job")
	j.tick(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("stopping job")
			return ctx.Err()
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *Job) tick(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.log.Error().Err(err).Msg("job run failed")
	}
}

// RunOnce executes one bounded run. It reports false when another replica holds the lock.
func (j *Job) RunOnce(ctx context.Context) (bool, error) {
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if j.locker != nil {
		key := "lock:job:" + j.name
		token, err := j.locker.TryLock(runCtx, key, j.timeout+5*time.Second)
		if errors.Is(err, domain.ErrConflict) {
			j.log.Debug().Msg("job locked by another instance")
			return false, nil
		}
		if err != nil {
			return false, err
		}
		defer func() {
			// the run context may already be done
			if err := j.locker.Unlock(context.Background(), key, token); err != nil {
				j.log.Warn().Err(err).Msg("job unlock failed")
			}
		}()
	}
	return true, j.fn(runCtx)
}
