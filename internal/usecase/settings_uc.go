package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"
)

var _ SettingsUseCase = (*settingsUC)(nil)

type SettingsUseCase interface {
	// Current returns a private copy of the effective configuration.
	Current(ctx context.Context) (*model.PaymentSettings, error)
	// Update validates in and stores it as the next version.
	Update(ctx context.Context, actorID string, in model.PaymentSettingsInput) (*model.PaymentSettings, error)
}

type settingsUC struct {
	repo     repository.PaymentSettingsRepository
	audit    repository.AuditRepository
	tm       repository.TransactionManager
	defaults model.PaymentSettings
	log      *zerolog.Logger
}

// NewSettingsUseCase takes the configured defaults used until the first admin write.
func NewSettingsUseCase(
	repo repository.PaymentSettingsRepository,
	audit repository.AuditRepository,
	tm repository.TransactionManager,
	defaults model.PaymentSettings,
	logger *zerolog.Logger,
) *settingsUC {
	l := logger.With().Str("component", "SettingsUC").Logger()
	defaults.Version = 0
	return &settingsUC{repo: repo, audit: audit, tm: tm, defaults: defaults, log: &l}
}

func (u *settingsUC) Current(ctx context.Context) (*model.PaymentSettings, error) {
	s, err := u.repo.Latest(ctx, repository.NoTX)
	if errors.Is(err, domain.ErrNotFound) {
		cp := u.defaults
		return &cp, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (u *settingsUC) Update(ctx context.Context, actorID string, in model.PaymentSettingsInput) (*model.PaymentSettings, error) {
	if actorID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var out *model.PaymentSettings
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		prev, err := u.repo.Latest(ctx, tx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			cp := u.defaults
			prev = &cp
		case err != nil:
			return err
		}

		next := &model.PaymentSettings{
			Version:                     prev.Version + 1,
			MaxInstallments:             in.MaxInstallments,
			PixDiscountPercent:          in.PixDiscountPercent,
			InstallmentsWithoutInterest: in.InstallmentsWithoutInterest,
			PixExpirationMinutes:        in.PixExpirationMinutes,
			UpdatedBy:                   actorID,
			CreatedAt:                   time.Now(),
		}
		// a concurrent writer that took the same version gets ErrConflict here
		if err := u.repo.Insert(ctx, tx, next); err != nil {
			return err
		}

		before, _ := json.Marshal(prev)
		after, _ := json.Marshal(next)
		if err := u.audit.Append(ctx, tx, &model.AuditEntry{
			ID:        uuid.NewString(),
			ActorID:   actorID,
			Action:    "payment_settings.update",
			Entity:    "payment_settings",
			Before:    before,
			After:     after,
			CreatedAt: next.CreatedAt,
		}); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().
		Str("actor_id", actorID).
		Int64("version", out.Version).
		Int("max_installments", out.MaxInstallments).
		Str("pix_discount_percent", out.PixDiscountPercent.String()).
		Msg("payment settings updated")
	return out, nil
}
