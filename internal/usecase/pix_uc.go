package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
	"elearning-billing/internal/infra/metrics"
)

var _ PixUseCase = (*pixUC)(nil)

// PixStatusView is what a polling client sees.
type PixStatusView struct {
	ID               string
	Status           model.PixStatus
	PaidAt           *time.Time
	ExpiresAt        time.Time
	FinalAmountCents int64
	// Source is "gateway" when the gateway answered, "local" otherwise.
	Source string
}

type PixUseCase interface {
	// CreatePixPayment prices the intent from settings, opens the gateway charge and
	// stores the intent. target is a cancelled subscription to revive on payment.
	CreatePixPayment(ctx context.Context, studentID string, plan *model.Plan, settings model.PaymentSettings, target *string) (*model.PixPayment, error)
	// CheckStatus is the polling endpoint. Only the owner may ask.
	CheckStatus(ctx context.Context, callerID, paymentID string) (*PixStatusView, error)
	// ConfirmPaid marks pix paid inside tx and, if this call won, grants access.
	ConfirmPaid(ctx context.Context, tx repository.Tx, pix *model.PixPayment, paidAt time.Time) (bool, []model.Notification, error)
	// Expire applies a gateway-reported expiry.
	Expire(ctx context.Context, tx repository.Tx, pix *model.PixPayment) (bool, error)
	// ExpireOverdue is the wall-clock sweep.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	// ReconcilePending re-asks the gateway about intents pending for longer than olderThan.
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type pixUC struct {
	pixes    repository.PixPaymentRepository
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewPixUseCase(
	pixes repository.PixPaymentRepository,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *pixUC {
	l := logger.With().Str("component", "PixUC").Logger()
	return &pixUC{
		pixes:    pixes,
		payments: payments,
		subs:     subs,
		plans:    plans,
		tm:       tm,
		gateway:  gateway,
		notifier: notifier,
		log:      &l,
		now:      time.Now,
	}
}

func (u *pixUC) CreatePixPayment(ctx context.Context, studentID string, plan *model.Plan, settings model.PaymentSettings, target *string) (*model.PixPayment, error) {
	now := u.now()
	pix, err := model.NewPixPayment(uuid.NewString(), studentID, plan, settings, now)
	if err != nil {
		return nil, err
	}
	pix.SubscriptionID = target

	meta := map[string]string{
		"student_id":     studentID,
		"plan_id":        plan.ID,
		"pix_payment_id": pix.ID,
		"reactivation":   strconv.FormatBool(target != nil),
	}
	if target != nil {
		meta["subscription_id"] = *target
	}
	charge, err := u.gateway.CreatePixCharge(ctx, adapter.PixChargeRequest{
		Reference:   ulid.Make().String(),
		AmountCents: pix.FinalAmountCents,
		Currency:    pix.Currency,
		ExpiresAt:   pix.ExpiresAt,
		Description: plan.Name,
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckoutCreationFailed, err)
	}
	pix.GatewayChargeID = charge.ID
	pix.QRCode = charge.QRCode
	pix.QRCodeBase64 = charge.QRCodeBase64
	pix.CopyPasteCode = charge.CopyPasteCode

	if err := u.pixes.Save(ctx, repository.NoTX, pix); err != nil {
		// the orphaned charge expires on its own at the gateway
		u.log.Error().Err(err).Str("charge_id", charge.ID).Str("pix_payment_id", pix.ID).Msg("failed to store pix intent")
		return nil, err
	}

	u.log.Info().
		Str("pix_payment_id", pix.ID).
		Str("student_id", studentID).
		Int64("amount_cents", pix.AmountCents).
		Int64("final_amount_cents", pix.FinalAmountCents).
		Int64("settings_version", pix.SettingsVersion).
		Time("expires_at", pix.ExpiresAt).
		Msg("pix intent created")
	return pix, nil
}

func (u *pixUC) CheckStatus(ctx context.Context, callerID, paymentID string) (*PixStatusView, error) {
	pix, err := u.pixes.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if pix.StudentID != callerID {
		return nil, domain.ErrForbidden
	}
	if pix.Status == model.PixStatusPaid {
		metrics.IncPixStatusCheck("local")
		return view(pix, "local"), nil
	}
	return u.sync(ctx, pix, "poll")
}

// sync asks the gateway about pix and applies its answer. When the gateway cannot
// be reached the local row is returned, expired lazily if overdue.
func (u *pixUC) sync(ctx context.Context, pix *model.PixPayment, source string) (*PixStatusView, error) {
	charge, err := u.gateway.GetPixCharge(ctx, pix.GatewayChargeID)
	if err != nil {
		u.log.Warn().Err(err).Str("pix_payment_id", pix.ID).Msg("gateway status check failed, answering from local state")
		metrics.IncPixStatusCheck("local")
		u.expireIfOverdue(ctx, pix)
		return view(pix, "local"), nil
	}
	metrics.IncPixStatusCheck(source)

	switch charge.Status {
	case adapter.PixChargePaid:
		paidAt := u.now()
		if charge.PaidAt != nil {
			paidAt = *charge.PaidAt
		}
		var notes []model.Notification
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			locked, err := u.pixes.FindByID(ctx, tx, pix.ID)
			if err != nil {
				return err
			}
			_, notes, err = u.ConfirmPaid(ctx, tx, locked, paidAt)
			return err
		})
		if err != nil {
			return nil, err
		}
		dispatch(ctx, u.notifier, u.log, notes)
		fresh, err := u.pixes.FindByID(ctx, repository.NoTX, pix.ID)
		if err != nil {
			return nil, err
		}
		return view(fresh, "gateway"), nil

	case adapter.PixChargeExpired:
		if ok, err := u.pixes.Expire(ctx, repository.NoTX, pix.ID); err != nil {
			return nil, err
		} else if ok {
			metrics.AddPixExpired("gateway", 1)
			pix.Status = model.PixStatusExpired
		}
		return view(pix, "gateway"), nil
	}

	u.expireIfOverdue(ctx, pix)
	return view(pix, "gateway"), nil
}

func (u *pixUC) expireIfOverdue(ctx context.Context, pix *model.PixPayment) {
	now := u.now()
	if !pix.Overdue(now) {
		return
	}
	ok, err := u.pixes.ExpireIfOverdue(ctx, repository.NoTX, pix.ID, now)
	if err != nil {
		u.log.Warn().Err(err).Str("pix_payment_id", pix.ID).Msg("lazy expiry failed")
		return
	}
	if ok {
		metrics.AddPixExpired("lazy", 1)
		pix.Status = model.PixStatusExpired
	}
}

func view(p *model.PixPayment, source string) *PixStatusView {
	return &PixStatusView{
		ID:               p.ID,
		Status:           p.Status,
		PaidAt:           p.PaidAt,
		ExpiresAt:        p.ExpiresAt,
		FinalAmountCents: p.FinalAmountCents,
		Source:           source,
	}
}

func (u *pixUC) ConfirmPaid(ctx context.Context, tx repository.Tx, pix *model.PixPayment, paidAt time.Time) (bool, []model.Notification, error) {
	won, err := u.pixes.MarkPaid(ctx, tx, pix.ID, paidAt)
	if err != nil || !won {
		return false, nil, err
	}

	sub, err := u.grant(ctx, tx, pix, paidAt)
	if err != nil {
		return false, nil, err
	}

	now := u.now()
	payment := &model.Payment{
		ID:              uuid.NewString(),
		StudentID:       pix.StudentID,
		SubscriptionID:  &sub.ID,
		AmountCents:     pix.FinalAmountCents,
		Currency:        pix.Currency,
		Status:          model.PaymentStatusPaid,
		Method:          model.PaymentMethodPix,
		PixPaymentID:    &pix.ID,
		GatewayChargeID: pix.GatewayChargeID,
		PaidAt:          &paidAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := u.payments.Insert(ctx, tx, payment); err != nil {
		return false, nil, err
	}

	metrics.IncPayment(string(model.PaymentMethodPix), string(model.PaymentStatusPaid))
	metrics.AddPaymentRevenue(pix.Currency, pix.FinalAmountCents)
	u.log.Info().
		Str("pix_payment_id", pix.ID).
		Str("subscription_id", sub.ID).
		Time("paid_at", paidAt).
		Msg("pix payment confirmed")

	return true, []model.Notification{{
		Kind:           model.NotificationPaymentConfirmed,
		StudentID:      pix.StudentID,
		SubscriptionID: sub.ID,
		Data: map[string]string{
			"method":       string(model.PaymentMethodPix),
			"amount_cents": strconv.FormatInt(pix.FinalAmountCents, 10),
			"currency":     pix.Currency,
		},
		CreatedAt: now,
	}}, nil
}

// grant gives the student one billing period of access. In order of preference it
// extends the active subscription, revives the reactivation target, activates a
// pending shadow row for the plan, or creates a new active subscription.
// The active row is looked up first: a failed unique check would abort the transaction.
func (u *pixUC) grant(ctx context.Context, tx repository.Tx, pix *model.PixPayment, at time.Time) (*model.Subscription, error) {
	plan, err := u.plans.FindByID(ctx, tx, pix.PlanID)
	if err != nil {
		return nil, err
	}
	end := plan.PeriodEnd(at)

	active, err := u.subs.FindActiveByStudent(ctx, tx, pix.StudentID)
	switch {
	case err == nil:
		from := at
		if active.CurrentPeriodEnd != nil && active.CurrentPeriodEnd.After(at) {
			from = *active.CurrentPeriodEnd
		}
		newEnd := plan.PeriodEnd(from)
		if _, err := u.subs.UpdateIf(ctx, tx, active.ID, model.SubscriptionUpdate{
			Status:    model.SubscriptionStatusActive,
			From:      []model.SubscriptionStatus{model.SubscriptionStatusActive},
			PeriodEnd: &newEnd,
		}); err != nil {
			return nil, err
		}
		active.CurrentPeriodEnd = &newEnd
		return active, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	candidates := make([]*model.Subscription, 0, 2)
	if pix.SubscriptionID != nil {
		target, err := u.subs.FindByID(ctx, tx, *pix.SubscriptionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if target != nil && target.StudentID == pix.StudentID {
			candidates = append(candidates, target)
		}
	}
	pending, err := u.subs.FindPendingByStudentAndPlan(ctx, tx, pix.StudentID, pix.PlanID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if pending != nil {
		candidates = append(candidates, pending)
	}

	for _, c := range candidates {
		upd := model.SubscriptionUpdate{
			Status:           model.SubscriptionStatusActive,
			From:             []model.SubscriptionStatus{model.SubscriptionStatusPending, model.SubscriptionStatusSuspended},
			PeriodStart:      &at,
			PeriodEnd:        &end,
			ClearCancelledAt: true,
		}
		// a revived row is no longer billed by the gateway subscription that was cancelled
		revive := c.Status == model.SubscriptionStatusCancelled
		if revive {
			upd.From = []model.SubscriptionStatus{model.SubscriptionStatusCancelled}
			upd.ClearGatewayID = c.GatewaySubscriptionID != nil
		}
		ok, err := u.subs.UpdateIf(ctx, tx, c.ID, upd)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if revive {
			if err := retireGatewayID(ctx, u.subs, tx, c, u.now()); err != nil {
				return nil, err
			}
		}
		metrics.IncSubscriptionTransition(model.SubscriptionStatusActive, "pix")
		return u.subs.FindByID(ctx, tx, c.ID)
	}

	now := u.now()
	sub := &model.Subscription{
		ID:                 uuid.NewString(),
		StudentID:          pix.StudentID,
		PlanID:             pix.PlanID,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: &at,
		CurrentPeriodEnd:   &end,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	metrics.IncSubscriptionTransition(model.SubscriptionStatusActive, "pix")
	return sub, nil
}

func (u *pixUC) Expire(ctx context.Context, tx repository.Tx, pix *model.PixPayment) (bool, error) {
	ok, err := u.pixes.Expire(ctx, tx, pix.ID)
	if err == nil && ok {
		metrics.AddPixExpired("gateway", 1)
	}
	return ok, err
}

func (u *pixUC) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := u.pixes.ExpireOverdue(ctx, repository.NoTX, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddPixExpired("sweep", int(n))
		u.log.Info().Int64("expired", n).Msg("overdue pix intents expired")
	}
	return n, nil
}

func (u *pixUC) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := u.pixes.ListPendingOlderThan(ctx, repository.NoTX, u.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}
	paid := 0
	for _, pix := range stale {
		if ctx.Err() != nil {
			return paid, ctx.Err()
		}
		v, err := u.sync(ctx, pix, "reconciler")
		if err != nil {
			u.log.Error().Err(err).Str("pix_payment_id", pix.ID).Msg("pix reconcile failed")
			continue
		}
		if v.Status == model.PixStatusPaid {
			paid++
		}
	}
	if paid > 0 {
		u.log.Info().Int("paid", paid).Int("checked", len(stale)).Msg("reconciled pending pix intents")
	}
	return paid, nil
}
