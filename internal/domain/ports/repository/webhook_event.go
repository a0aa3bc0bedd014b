package repository

import (
	"context"

	"elearning-billing/internal/domain/model"
)

// WebhookEventRepository is the ledger of applied gateway events.
type WebhookEventRepository interface {
	// Record reports false when the event id was already recorded.
	Record(ctx context.Context, tx Tx, ev *model.WebhookEvent) (bool, error)
}
