package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
	"elearning-billing/internal/infra/metrics"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	Create(ctx context.Context, studentID, planID string) (*model.Subscription, error)
	Cancel(ctx context.Context, studentID, subscriptionID string) (*model.Subscription, error)
	Reactivate(ctx context.Context, studentID, subscriptionID string, method model.PaymentMethod, installments *int) (*CheckoutResult, error)
	Current(ctx context.Context, studentID string) (*model.Subscription, error)
	IsEntitled(ctx context.Context, studentID string) (bool, error)
	CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error)
}

type subscriptionUC struct {
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	students repository.StudentRepository
	tm       repository.TransactionManager
	checkout CheckoutUseCase
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	students repository.StudentRepository,
	tm repository.TransactionManager,
	checkout CheckoutUseCase,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		subs:     subs,
		plans:    plans,
		students: students,
		tm:       tm,
		checkout: checkout,
		gateway:  gateway,
		notifier: notifier,
		log:      &l,
		now:      time.Now,
	}
}

// Create opens (or reuses) the pending row a later payment confirms.
func (u *subscriptionUC) Create(ctx context.Context, studentID, planID string) (*model.Subscription, error) {
	exists, err := u.students.Exists(ctx, repository.NoTX, studentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrStudentNotFound
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrPlanInactive
	}

	var out *model.Subscription
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.subs.FindActiveByStudent(ctx, tx, studentID); err == nil {
			return domain.ErrAlreadySubscribed
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		pending, err := u.subs.FindPendingByStudentAndPlan(ctx, tx, studentID, planID)
		if err == nil {
			out = pending
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		sub, err := model.NewPendingSubscription(uuid.NewString(), studentID, planID)
		if err != nil {
			return err
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		metrics.IncSubscriptionTransition(model.SubscriptionStatusPending, "student")
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel is idempotent: an already cancelled subscription is returned as is.
// The gateway is told after commit, best effort.
func (u *subscriptionUC) Cancel(ctx context.Context, studentID, subscriptionID string) (*model.Subscription, error) {
	var (
		out     *model.Subscription
		changed bool
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		changed = false
		sub, err := u.subs.FindByID(ctx, tx, subscriptionID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}
		if sub.StudentID != studentID {
			return domain.ErrForbidden
		}
		if sub.Status == model.SubscriptionStatusCancelled {
			out = sub
			return nil
		}

		at := u.now()
		ok, err := u.subs.UpdateIf(ctx, tx, sub.ID, model.SubscriptionUpdate{
			Status:      model.SubscriptionStatusCancelled,
			From:        model.LiveSubscriptionStatuses,
			CancelledAt: &at,
		})
		if err != nil {
			return err
		}
		if ok {
			changed = true
			sub.Status = model.SubscriptionStatusCancelled
			sub.CancelledAt = &at
			sub.UpdatedAt = at
			out = sub
			return nil
		}
		out, err = u.subs.FindByID(ctx, tx, sub.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return out, nil
	}

	metrics.IncSubscriptionTransition(model.SubscriptionStatusCancelled, "student")
	u.log.Info().Str("student_id", studentID).Str("subscription_id", out.ID).Msg("subscription cancelled")

	if out.GatewaySubscriptionID != nil {
		if err := u.gateway.CancelSubscription(ctx, *out.GatewaySubscriptionID); err != nil {
			// the gateway's own deletion event reconciles later
			u.log.Warn().Err(err).Str("subscription_id", out.ID).Msg("gateway cancellation failed")
		}
	}
	dispatch(ctx, u.notifier, u.log, []model.Notification{{
		Kind:           model.NotificationSubscriptionCancelled,
		StudentID:      studentID,
		SubscriptionID: out.ID,
		Data:           map[string]string{"source": "student"},
		CreatedAt:      u.now(),
	}})
	return out, nil
}

// Reactivate starts a checkout whose confirmation revives the cancelled row.
func (u *subscriptionUC) Reactivate(ctx context.Context, studentID, subscriptionID string, method model.PaymentMethod, installments *int) (*CheckoutResult, error) {
	sub, err := u.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.StudentID != studentID {
		return nil, domain.ErrForbidden
	}
	if sub.Status != model.SubscriptionStatusCancelled {
		return nil, domain.ErrNotCancelled
	}
	if _, err := u.subs.FindActiveByStudent(ctx, repository.NoTX, studentID); err == nil {
		return nil, domain.ErrAlreadySubscribed
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return u.checkout.CreateCheckout(ctx, CheckoutRequest{
		StudentID:    studentID,
		PlanID:       sub.PlanID,
		Method:       method,
		Installments: installments,
		ReactivateID: sub.ID,
	})
}

func (u *subscriptionUC) Current(ctx context.Context, studentID string) (*model.Subscription, error) {
	sub, err := u.subs.FindCurrentByStudent(ctx, repository.NoTX, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, err
}

func (u *subscriptionUC) IsEntitled(ctx context.Context, studentID string) (bool, error) {
	sub, err := u.subs.FindActiveByStudent(ctx, repository.NoTX, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.IsEntitled(u.now()), nil
}

func (u *subscriptionUC) CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return u.subs.CountByStatus(ctx, repository.NoTX)
}

// retireGatewayID hands the gateway id a revived row carried over to a cancelled
// tombstone, so late events for the dead gateway subscription find a cancelled row
// and change nothing. Must run after the revived row released the id.
func retireGatewayID(ctx context.Context, subs repository.SubscriptionRepository, tx repository.Tx, old *model.Subscription, now time.Time) error {
	if old.GatewaySubscriptionID == nil {
		return nil
	}
	gatewayID := *old.GatewaySubscriptionID
	cancelledAt := now
	if old.CancelledAt != nil {
		cancelledAt = *old.CancelledAt
	}
	eventAt := cancelledAt
	if old.GatewayEventAt != nil && old.GatewayEventAt.After(eventAt) {
		eventAt = *old.GatewayEventAt
	}
	return subs.Save(ctx, tx, &model.Subscription{
		ID:                    uuid.NewString(),
		StudentID:             old.StudentID,
		PlanID:                old.PlanID,
		Status:                model.SubscriptionStatusCancelled,
		GatewaySubscriptionID: &gatewayID,
		CurrentPeriodStart:    old.CurrentPeriodStart,
		CurrentPeriodEnd:      old.CurrentPeriodEnd,
		CreatedAt:             now,
		UpdatedAt:             now,
		CancelledAt:           &cancelledAt,
		GatewayEventAt:        &eventAt,
	})
}
