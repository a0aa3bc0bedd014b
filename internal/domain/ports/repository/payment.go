package repository

import (
	"context"
	"time"

	"elearning-billing/internal/domain/model"
)

// PaymentRepository stores settlement attempts keyed by gateway charge id.
type PaymentRepository interface {
	// Insert records an attempt unless one with the same gateway charge id exists.
	// It reports whether a row was written.
	Insert(ctx context.Context, tx Tx, p *model.Payment) (bool, error)
	FindByGatewayChargeID(ctx context.Context, tx Tx, chargeID string) (*model.Payment, error)
	// UpdateStatusIf moves a payment to status only from one of the from statuses.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, status model.PaymentStatus, from []model.PaymentStatus, paidAt *time.Time) (bool, error)
	ListPaidBetween(ctx context.Context, tx Tx, from, to time.Time) ([]*model.Payment, error)
}
