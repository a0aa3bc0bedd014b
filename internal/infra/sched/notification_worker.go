package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type reminder interface {
	RemindExpiring(ctx context.Context, withinDays int) (int, error)
}

type NotificationWorker struct {
	*Job
	notifUC    reminder
	withinDays int
	log        *zerolog.Logger
}

func NewNotificationWorker(interval time.Duration, withinDays int, notifUC reminder, locker Locker, logger *zerolog.Logger) *NotificationWorker {
	compLog := logger.With().Str("component", "NotificationWorker").Logger()
	w := &NotificationWorker{notifUC: notifUC, withinDays: withinDays, log: &compLog}
	w.Job = NewJob("renewal-reminders", interval, w.runCheck, locker, logger)
	return w
}

func (w *NotificationWorker) runCheck(ctx context.Context) error {
	sent, err := w.notifUC.RemindExpiring(ctx, w.withinDays)
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("renewal reminders queued")
	}
	return err
}
