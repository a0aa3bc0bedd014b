package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"
)

var _ repository.PixPaymentRepository = (*PostgresPixPaymentRepo)(nil)

type PostgresPixPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPixPaymentRepo(pool *pgxpool.Pool) *PostgresPixPaymentRepo {
	return &PostgresPixPaymentRepo{pool: pool}
}

const pixSelect = `SELECT id, student_id, plan_id, subscription_id, amount_cents, currency, discount_percent::text,
 final_amount_cents, qr_code, qr_code_base64, copy_paste_code, gateway_charge_id, status, expires_at, paid_at, created_at, settings_version
 FROM pix_payments`

func scanPix(row pgx.Row) (*model.PixPayment, error) {
	var (
		p        model.PixPayment
		discount string
	)
	if err := row.Scan(&p.ID, &p.StudentID, &p.PlanID, &p.SubscriptionID, &p.AmountCents, &p.Currency, &discount,
		&p.FinalAmountCents, &p.QRCode, &p.QRCodeBase64, &p.CopyPasteCode, &p.GatewayChargeID, &p.Status,
		&p.ExpiresAt, &p.PaidAt, &p.CreatedAt, &p.SettingsVersion); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(discount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.DiscountPercent = d
	return &p, nil
}

func (r *PostgresPixPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PixPayment) error {
	const q = `
INSERT INTO pix_payments (
  id, student_id, plan_id, subscription_id, amount_cents, currency, discount_percent, final_amount_cents,
  qr_code, qr_code_base64, copy_paste_code, gateway_charge_id, status, expires_at, paid_at, created_at, settings_version
) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.StudentID, p.PlanID, p.SubscriptionID, p.AmountCents, p.Currency, p.DiscountPercent.String(), p.FinalAmountCents,
		p.QRCode, p.QRCodeBase64, p.CopyPasteCode, p.GatewayChargeID, string(p.Status), p.ExpiresAt, p.PaidAt, p.CreatedAt, p.SettingsVersion,
	)
	return mapWriteErr(err)
}

func (r *PostgresPixPaymentRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.PixPayment, error) {
	row, err := pickRow(ctx, r.pool, tx, forUpdate(pixSelect+` WHERE `+where, tx), arg)
	if err != nil {
		return nil, err
	}
	p, err := scanPix(row)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return p, nil
}

func (r *PostgresPixPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PixPayment, error) {
	return r.findOne(ctx, tx, `id = $1`, id)
}

func (r *PostgresPixPaymentRepo) FindByGatewayChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.PixPayment, error) {
	return r.findOne(ctx, tx, `gateway_charge_id = $1`, chargeID)
}

func (r *PostgresPixPaymentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, paidAt time.Time) (bool, error) {
	const q = `UPDATE pix_payments SET status = 'paid', paid_at = $2 WHERE id = $1 AND status IN ('pending','expired')`
	return r.affects(ctx, tx, q, id, paidAt)
}

func (r *PostgresPixPaymentRepo) Expire(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE pix_payments SET status = 'expired' WHERE id = $1 AND status = 'pending'`
	return r.affects(ctx, tx, q, id)
}

func (r *PostgresPixPaymentRepo) ExpireIfOverdue(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	const q = `UPDATE pix_payments SET status = 'expired' WHERE id = $1 AND status = 'pending' AND expires_at < $2`
	return r.affects(ctx, tx, q, id, now)
}

func (r *PostgresPixPaymentRepo) ExpireOverdue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `UPDATE pix_payments SET status = 'expired' WHERE status = 'pending' AND expires_at < $1`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *PostgresPixPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PixPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := queryRows(ctx, r.pool, tx, pixSelect+` WHERE status = 'pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.PixPayment
	for rows.Next() {
		p, err := scanPix(rows)
		if err != nil {
			return nil, mapReadErr(err)
		}
		out = append(out, p)
	}
	return out, mapReadErr(rows.Err())
}

func (r *PostgresPixPaymentRepo) affects(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (bool, error) {
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}
