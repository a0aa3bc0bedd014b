package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)

type PostgresWebhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresWebhookEventRepo(pool *pgxpool.Pool) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{pool: pool}
}

// Record inserts the event id. Run it inside the transaction that applies the
// event so a rollback also forgets the id.
func (r *PostgresWebhookEventRepo) Record(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent) (bool, error) {
	const q = `
INSERT INTO webhook_events (event_id, type, created_at, received_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id) DO NOTHING`
	cmd, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.RawType, ev.CreatedAt, ev.ReceivedAt)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}
