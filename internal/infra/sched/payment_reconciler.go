package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type pixReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// PaymentReconciler re-asks the gateway about PIX intents that stayed pending longer
// than staleAfter. This covers lost webhooks and clients that stopped polling.
type PaymentReconciler struct {
	*Job
	pix        pixReconciler
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(pix pixReconciler, interval, staleAfter time.Duration, locker Locker, logger *zerolog.Logger) *PaymentReconciler {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	w := &PaymentReconciler{pix: pix, staleAfter: staleAfter, batch: 200, log: &l}
	w.Job = NewJob("pix-reconcile", interval, w.reconcile, locker, logger)
	return w
}

func (w *PaymentReconciler) reconcile(ctx context.Context) error {
	paid, err := w.pix.ReconcilePending(ctx, w.staleAfter, w.batch)
	if paid > 0 {
		w.log.Info().Int("paid", paid).Msg("reconciled stale pix intents")
	}
	return err
}
