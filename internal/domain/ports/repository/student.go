package repository

import "context"

// StudentRepository is a read-only view over the account service's students.
type StudentRepository interface {
	Exists(ctx context.Context, tx Tx, id string) (bool, error)
}
