package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type pixSweeper interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryWorker periodically expires PIX intents whose window has passed. Expiry is
// advisory: a later gateway confirmation still wins.
type ExpiryWorker struct {
	*Job
	pix pixSweeper
	log *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, pix pixSweeper, locker Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	w := &ExpiryWorker{pix: pix, log: &exprLog}
	w.Job = NewJob("pix-expiry", interval, w.sweep, locker, logger)
	return w
}

func (w *ExpiryWorker) sweep(ctx context.Context) error {
	n, err := w.pix.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("overdue pix intents expired")
	}
	return nil
}
