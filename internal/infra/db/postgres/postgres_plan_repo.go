package postgres

import (
	"context"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

const planColumns = `id, name, price_cents, currency, billing_interval, active, created_at`

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const sql = `
INSERT INTO plans (id, name, price_cents, currency, billing_interval, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
  SET name             = EXCLUDED.name,
      price_cents      = EXCLUDED.price_cents,
      currency         = EXCLUDED.currency,
      billing_interval = EXCLUDED.billing_interval,
      active           = EXCLUDED.active;
`
	_, err := execSQL(ctx, r.pool, tx, sql,
		plan.ID, plan.Name, plan.PriceCents, plan.Currency, string(plan.Interval), plan.Active, plan.CreatedAt,
	)
	return mapWriteErr(err)
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var p model.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.Interval, &p.Active, &p.CreatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	return &p, nil
}

func (r *PostgresPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+planColumns+` FROM plans WHERE active ORDER BY price_cents ASC, name ASC`)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.Interval, &p.Active, &p.CreatedAt); err != nil {
			return nil, mapReadErr(err)
		}
		out = append(out, &p)
	}
	return out, mapReadErr(rows.Err())
}
