package postgres

import (
	"context"

	"elearning-billing/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.StudentRepository = (*PostgresStudentRepo)(nil)

// PostgresStudentRepo reads the students table shared with the account service.
type PostgresStudentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresStudentRepo(pool *pgxpool.Pool) *PostgresStudentRepo {
	return &PostgresStudentRepo{pool: pool}
}

func (r *PostgresStudentRepo) Exists(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM students WHERE id::text = $1)`, id)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapReadErr(err)
	}
	return ok, nil
}

// Upsert is used by the seed command and tests.
func (r *PostgresStudentRepo) Upsert(ctx context.Context, tx repository.Tx, id, email, name string) error {
	const sql = `
INSERT INTO students (id, email, name) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name;`
	_, err := execSQL(ctx, r.pool, tx, sql, id, email, name)
	return mapWriteErr(err)
}
