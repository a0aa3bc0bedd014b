package postgres

import (
	"context"
	"time"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)

type PostgresSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepo(pool *pgxpool.Pool) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, student_id, plan_id, status, gateway_subscription_id, current_period_start, current_period_end, created_at, updated_at, cancelled_at, gateway_event_at`

const activeIndexName = "subscriptions_one_active_per_student"

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	if err := row.Scan(
		&s.ID, &s.StudentID, &s.PlanID, &s.Status, &s.GatewaySubscriptionID,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt, &s.CancelledAt, &s.GatewayEventAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const sql = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	_, err := execSQL(ctx, r.pool, tx, sql,
		s.ID, s.StudentID, s.PlanID, string(s.Status), s.GatewaySubscriptionID,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CreatedAt, s.UpdatedAt, s.CancelledAt, s.GatewayEventAt,
	)
	if err != nil && pgCode(err) == pgUniqueViolation && pgConstraint(err) == activeIndexName {
		return domain.ErrAlreadySubscribed
	}
	return mapWriteErr(err)
}

func (r *PostgresSubscriptionRepo) findOne(ctx context.Context, tx repository.Tx, where string, args ...interface{}) (*model.Subscription, error) {
	q := forUpdate(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE `+where, tx)
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return s, nil
}

func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.findOne(ctx, tx, `id = $1`, id)
}

func (r *PostgresSubscriptionRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gatewayID string) (*model.Subscription, error) {
	return r.findOne(ctx, tx, `gateway_subscription_id = $1`, gatewayID)
}

func (r *PostgresSubscriptionRepo) FindActiveByStudent(ctx context.Context, tx repository.Tx, studentID string) (*model.Subscription, error) {
	return r.findOne(ctx, tx, `student_id = $1 AND status = 'active'`, studentID)
}

func (r *PostgresSubscriptionRepo) FindPendingByStudentAndPlan(ctx context.Context, tx repository.Tx, studentID, planID string) (*model.Subscription, error) {
	return r.findOne(ctx, tx, `student_id = $1 AND plan_id = $2 AND status = 'pending' AND gateway_subscription_id IS NULL ORDER BY created_at DESC LIMIT 1`, studentID, planID)
}

func (r *PostgresSubscriptionRepo) FindCurrentByStudent(ctx context.Context, tx repository.Tx, studentID string) (*model.Subscription, error) {
	return r.findOne(ctx, tx, `student_id = $1 ORDER BY (status = 'active') DESC, updated_at DESC LIMIT 1`, studentID)
}

// UpdateIf applies upd as one conditional statement. Nil optional fields keep the
// stored value. Returns false when no row matched the guard.
func (r *PostgresSubscriptionRepo) UpdateIf(ctx context.Context, tx repository.Tx, id string, upd model.SubscriptionUpdate) (bool, error) {
	if len(upd.From) == 0 {
		return false, domain.ErrInvalidArgument
	}
	const sql = `
UPDATE subscriptions
   SET status                  = $2,
       gateway_subscription_id = CASE WHEN $10::boolean THEN NULL ELSE COALESCE($4, gateway_subscription_id) END,
       current_period_start    = COALESCE($5, current_period_start),
       current_period_end      = COALESCE($6, current_period_end),
       cancelled_at            = CASE WHEN $8::boolean THEN NULL ELSE COALESCE($7, cancelled_at) END,
       gateway_event_at        = GREATEST(gateway_event_at, $9::timestamptz),
       updated_at              = NOW()
 WHERE id = $1
   AND status = ANY($3::text[])
   AND ($11::boolean OR $9::timestamptz IS NULL OR gateway_event_at IS NULL OR gateway_event_at <= $9::timestamptz)`

	cmd, err := execSQL(ctx, r.pool, tx, sql,
		id, string(upd.Status), statusArgs(upd.From), upd.GatewayID,
		upd.PeriodStart, upd.PeriodEnd, upd.CancelledAt, upd.ClearCancelledAt, upd.EventAt,
		upd.ClearGatewayID, upd.IgnoreOrder,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation && pgConstraint(err) == activeIndexName {
			return false, domain.ErrAlreadySubscribed
		}
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *PostgresSubscriptionRepo) ListActiveEndingBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE status = 'active' AND current_period_end >= $1 AND current_period_end < $2
 ORDER BY current_period_end ASC`
	rows, err := queryRows(ctx, r.pool, tx, q, from, to)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, mapReadErr(err)
		}
		out = append(out, s)
	}
	return out, mapReadErr(rows.Err())
}

func (r *PostgresSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, mapReadErr(err)
		}
		out[model.SubscriptionStatus(status)] = n
	}
	return out, mapReadErr(rows.Err())
}
