package repository

import (
	"context"

	"elearning-billing/internal/domain/model"
)

// PaymentSettingsRepository stores versioned payment configuration.
type PaymentSettingsRepository interface {
	// Latest returns domain.ErrNotFound when no version was ever written.
	Latest(ctx context.Context, tx Tx) (*model.PaymentSettings, error)
	// Insert writes s.Version; a concurrent writer holding the same version gets domain.ErrConflict.
	Insert(ctx context.Context, tx Tx, s *model.PaymentSettings) error
}

type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEntry) error
}
