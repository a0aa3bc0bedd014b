package adapter

import (
	"context"

	"elearning-billing/internal/domain/model"
)

// Notifier hands notifications to the delivery collaborator (email, push).
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}
