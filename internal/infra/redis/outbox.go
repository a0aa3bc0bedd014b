package redis

import (
	"context"
	"encoding/json"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
)

// NotificationQueue is the list consumed by the mailer service.
const NotificationQueue = "billing:notifications"

var _ adapter.Notifier = (*NotificationOutbox)(nil)

// NotificationOutbox hands notifications to the mailer through a Redis list.
type NotificationOutbox struct {
	cli   RedisClient
	queue string
}

func NewNotificationOutbox(cli RedisClient) *NotificationOutbox {
	return &NotificationOutbox{cli: cli, queue: NotificationQueue}
}

func (o *NotificationOutbox) Notify(ctx context.Context, n model.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return o.cli.LPush(ctx, o.queue, b)
}
