package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
)

var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// RemindExpiring notifies students whose active period ends within withinDays.
	// Each subscription period is reminded at most once.
	RemindExpiring(ctx context.Context, withinDays int) (int, error)
}

type notificationUC struct {
	subs     repository.SubscriptionRepository
	notifier adapter.Notifier
	once     adapter.OnceMarker
	log      *zerolog.Logger
}

func NewNotificationUseCase(subs repository.SubscriptionRepository, notifier adapter.Notifier, once adapter.OnceMarker, logger *zerolog.Logger) *notificationUC {
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{subs: subs, notifier: notifier, once: once, log: &l}
}

func (n *notificationUC) RemindExpiring(ctx context.Context, withinDays int) (int, error) {
	if withinDays <= 0 {
		withinDays = 3
	}
	now := time.Now()
	window := time.Duration(withinDays) * 24 * time.Hour
	items, err := n.subs.ListActiveEndingBetween(ctx, repository.NoTX, now, now.Add(window))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, s := range items {
		if s.CurrentPeriodEnd == nil {
			continue
		}
		key := fmt.Sprintf("reminder:%s:%d", s.ID, s.CurrentPeriodEnd.Unix())
		first, err := n.once.MarkOnce(ctx, key, window+24*time.Hour)
		if err != nil {
			n.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("reminder dedupe failed")
			continue
		}
		if !first {
			continue
		}
		daysLeft := int(s.CurrentPeriodEnd.Sub(now).Hours() / 24)
		if err := n.notifier.Notify(ctx, model.Notification{
			Kind:           model.NotificationRenewalReminder,
			StudentID:      s.StudentID,
			SubscriptionID: s.ID,
			Data: map[string]string{
				"period_end": s.CurrentPeriodEnd.UTC().Format(time.RFC3339),
				"days_left":  strconv.Itoa(daysLeft),
			},
			CreatedAt: now,
		}); err != nil {
			n.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("reminder not queued")
			continue
		}
		sent++
	}
	return sent, nil
}

// dispatch hands committed notifications to the notifier. Failures are logged only.
func dispatch(ctx context.Context, notifier adapter.Notifier, log *zerolog.Logger, notes []model.Notification) {
	if notifier == nil {
		return
	}
	for _, n := range notes {
		if err := notifier.Notify(ctx, n); err != nil {
			log.Warn().Err(err).Str("kind", string(n.Kind)).Str("student_id", n.StudentID).Msg("notification not dispatched")
		}
	}
}
