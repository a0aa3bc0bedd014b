package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"
)

var (
	_ repository.PaymentSettingsRepository = (*PostgresSettingsRepo)(nil)
	_ repository.AuditRepository           = (*PostgresAuditRepo)(nil)
)

// PostgresSettingsRepo keeps every version of the payment settings; rows are never updated.
type PostgresSettingsRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSettingsRepo(pool *pgxpool.Pool) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{pool: pool}
}

func (r *PostgresSettingsRepo) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentSettings, error) {
	const q = `
SELECT version, max_installments, pix_discount_percent::text, installments_without_interest,
       pix_expiration_minutes, updated_by, created_at
  FROM payment_settings
 ORDER BY version DESC
 LIMIT 1`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	var (
		s        model.PaymentSettings
		discount string
	)
	if err := row.Scan(&s.Version, &s.MaxInstallments, &discount, &s.InstallmentsWithoutInterest,
		&s.PixExpirationMinutes, &s.UpdatedBy, &s.CreatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	d, err := decimal.NewFromString(discount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	s.PixDiscountPercent = d
	return &s, nil
}

func (r *PostgresSettingsRepo) Insert(ctx context.Context, tx repository.Tx, s *model.PaymentSettings) error {
	const q = `
INSERT INTO payment_settings (version, max_installments, pix_discount_percent, installments_without_interest,
                              pix_expiration_minutes, updated_by, created_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.Version, s.MaxInstallments, s.PixDiscountPercent.String(), s.InstallmentsWithoutInterest,
		s.PixExpirationMinutes, s.UpdatedBy, s.CreatedAt,
	)
	if pgCode(err) == pgUniqueViolation {
		return domain.ErrConflict
	}
	return mapWriteErr(err)
}

type PostgresAuditRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAuditRepo(pool *pgxpool.Pool) *PostgresAuditRepo {
	return &PostgresAuditRepo{pool: pool}
}

func (r *PostgresAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	const q = `
INSERT INTO audit_log (id, actor_id, action, entity, before, after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.ActorID, e.Action, e.Entity, jsonbArg(e.Before), jsonbArg(e.After), e.CreatedAt,
	)
	return mapWriteErr(err)
}

// jsonbArg sends an empty document as SQL NULL.
func jsonbArg(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
