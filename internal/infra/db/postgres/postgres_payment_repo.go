package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, student_id, subscription_id, amount_cents, currency, status, payment_method, installments, pix_payment_id, gateway_charge_id, gateway_invoice_id, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.StudentID, &p.SubscriptionID, &p.AmountCents, &p.Currency, &p.Status, &p.Method,
		&p.Installments, &p.PixPaymentID, &p.GatewayChargeID, &p.GatewayInvoiceID, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// Insert records a settlement attempt. Redelivered attempts hit the unique
// gateway_charge_id and are skipped.
func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (gateway_charge_id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, p.StudentID, p.SubscriptionID, p.AmountCents, p.Currency, string(p.Status), string(p.Method),
		p.Installments, p.PixPaymentID, p.GatewayChargeID, p.GatewayInvoiceID, p.PaidAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) FindByGatewayChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.Payment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payments WHERE gateway_charge_id = $1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, chargeID)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return p, nil
}

// UpdateStatusIf atomically moves a payment to status when its current status is one of from.
func (r *paymentRepo) UpdateStatusIf(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, from []model.PaymentStatus, paidAt *time.Time,
) (bool, error) {
	if len(from) == 0 {
		return false, domain.ErrInvalidArgument
	}
	for _, f := range from {
		if !f.CanTransitionTo(status) {
			return false, domain.ErrInvalidArgument
		}
	}
	query := `
    UPDATE payments
       SET status = $2,
           paid_at = COALESCE($4, paid_at),
           updated_at = NOW()
     WHERE id = $1
       AND status = ANY($3::text[])`

	cmd, err := execSQL(ctx, r.pool, tx, query, id, string(status), statusArgs(from), paidAt)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListPaidBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status IN ('paid','refunded') AND paid_at >= $1 AND paid_at < $2 ORDER BY paid_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, from, to)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapReadErr(err)
		}
		out = append(out, p)
	}
	return out, mapReadErr(rows.Err())
}
