package repository

import (
	"context"
	"time"

	"elearning-billing/internal/domain/model"
)

// PixPaymentRepository stores PIX intents.
type PixPaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PixPayment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PixPayment, error)
	FindByGatewayChargeID(ctx context.Context, tx Tx, chargeID string) (*model.PixPayment, error)

	// MarkPaid accepts pending and expired rows: a gateway confirmation wins over
	// the local expiry clock.
	MarkPaid(ctx context.Context, tx Tx, id string, paidAt time.Time) (bool, error)
	// Expire is used when the gateway itself reports the intent expired.
	Expire(ctx context.Context, tx Tx, id string) (bool, error)
	// ExpireIfOverdue is the advisory, clock-driven expiry of one row.
	ExpireIfOverdue(ctx context.Context, tx Tx, id string, now time.Time) (bool, error)
	ExpireOverdue(ctx context.Context, tx Tx, now time.Time) (int64, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PixPayment, error)
}
