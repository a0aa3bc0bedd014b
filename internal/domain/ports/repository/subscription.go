package repository

import (
	"context"
	"time"

	"elearning-billing/internal/domain/model"
)

// SubscriptionRepository is the port for student subscriptions.
//
// Every status change goes through UpdateIf, which applies the change only when
// the row's current status is one of the expected ones. A false result means
// another writer got there first and is not an error.
type SubscriptionRepository interface {
	// Save inserts a new row. A second active row for the same student fails with
	// domain.ErrAlreadySubscribed.
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByGatewayID(ctx context.Context, tx Tx, gatewayID string) (*model.Subscription, error)
	FindActiveByStudent(ctx context.Context, tx Tx, studentID string) (*model.Subscription, error)
	FindPendingByStudentAndPlan(ctx context.Context, tx Tx, studentID, planID string) (*model.Subscription, error)
	// FindCurrentByStudent returns the active row if any, otherwise the most recently changed one.
	FindCurrentByStudent(ctx context.Context, tx Tx, studentID string) (*model.Subscription, error)
	UpdateIf(ctx context.Context, tx Tx, id string, upd model.SubscriptionUpdate) (bool, error)

	ListActiveEndingBetween(ctx context.Context, tx Tx, from, to time.Time) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
