package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
	"elearning-billing/internal/infra/logging"
	"elearning-billing/internal/infra/metrics"
)

var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutRequest struct {
	StudentID string
	PlanID    string
	Method    model.PaymentMethod
	// Installments applies to card only; nil means 1.
	Installments *int
	// ReactivateID names a cancelled subscription that the payment should revive.
	ReactivateID string
}

type CheckoutResult struct {
	Method model.PaymentMethod
	// card
	CheckoutURL    string
	SessionID      string
	SubscriptionID string
	// pix
	Pix *model.PixPayment
}

type CheckoutUseCase interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

type checkoutUC struct {
	students repository.StudentRepository
	plans    repository.PlanRepository
	subs     repository.SubscriptionRepository
	settings SettingsUseCase
	pix      PixUseCase
	gateway  adapter.PaymentGateway
	limiter  adapter.CheckoutLimiter
	log      *zerolog.Logger
}

// NewCheckoutUseCase wires the orchestrator. limiter may be nil.
func NewCheckoutUseCase(
	students repository.StudentRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	settings SettingsUseCase,
	pix PixUseCase,
	gateway adapter.PaymentGateway,
	limiter adapter.CheckoutLimiter,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		students: students,
		plans:    plans,
		subs:     subs,
		settings: settings,
		pix:      pix,
		gateway:  gateway,
		limiter:  limiter,
		log:      &l,
	}
}

func (u *checkoutUC) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "CheckoutUC.CreateCheckout")()

	res, err := u.create(ctx, req)
	result := "ok"
	if err != nil {
		result = checkoutFailure(err)
		log.Warn().Err(err).Str("plan_id", req.PlanID).Str("method", string(req.Method)).Msg("checkout rejected")
	}
	metrics.IncCheckout(string(req.Method), result)
	return res, err
}

func (u *checkoutUC) create(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	exists, err := u.students.Exists(ctx, repository.NoTX, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrStudentNotFound
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, req.PlanID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrPlanInactive
	}

	if _, err := u.subs.FindActiveByStudent(ctx, repository.NoTX, req.StudentID); err == nil {
		return nil, domain.ErrAlreadySubscribed
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if !req.Method.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}

	// one snapshot for the whole request
	settings, err := u.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var target *string
	if req.ReactivateID != "" {
		id := req.ReactivateID
		target = &id
	}

	installments := 1
	if req.Method == model.PaymentMethodCard {
		if req.Installments != nil {
			installments = *req.Installments
		}
		if !settings.AllowsInstallments(installments) {
			return nil, domain.ErrInvalidInstallments
		}
	}

	// only requests that passed validation count against the quota
	if err := u.allow(ctx, req.StudentID); err != nil {
		return nil, err
	}

	if req.Method == model.PaymentMethodPix {
		pix, err := u.pix.CreatePixPayment(ctx, req.StudentID, plan, *settings, target)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Method: model.PaymentMethodPix, Pix: pix}, nil
	}
	return u.card(ctx, req.StudentID, plan, *settings, installments, target)
}

func (u *checkoutUC) allow(ctx context.Context, studentID string) error {
	if u.limiter == nil {
		return nil
	}
	ok, err := u.limiter.AllowCheckout(ctx, studentID)
	if err != nil {
		u.log.Warn().Err(err).Msg("checkout rate limiter unavailable, allowing")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func (u *checkoutUC) card(ctx context.Context, studentID string, plan *model.Plan, settings model.PaymentSettings, installments int, target *string) (*CheckoutResult, error) {
	var subID string
	if target != nil {
		subID = *target
	} else {
		shadow, err := u.shadow(ctx, studentID, plan.ID)
		if err != nil {
			return nil, err
		}
		subID = shadow.ID
	}

	session, err := u.gateway.CreateCheckoutSession(ctx, adapter.CheckoutSessionRequest{
		Reference:    ulid.Make().String(),
		StudentID:    studentID,
		PlanID:       plan.ID,
		AmountCents:  plan.PriceCents,
		Currency:     plan.Currency,
		Interval:     plan.Interval,
		Installments: installments,
		InterestFree: settings.InterestFree(installments),
		Metadata: map[string]string{
			"student_id":      studentID,
			"plan_id":         plan.ID,
			"subscription_id": subID,
			"reactivation":    strconv.FormatBool(target != nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckoutCreationFailed, err)
	}

	u.log.Info().
		Str("student_id", studentID).
		Str("subscription_id", subID).
		Str("session_id", session.ID).
		Int("installments", installments).
		Msg("card checkout session created")
	return &CheckoutResult{
		Method:         model.PaymentMethodCard,
		CheckoutURL:    session.URL,
		SessionID:      session.ID,
		SubscriptionID: subID,
	}, nil
}

// shadow returns the student's unconfirmed pending row for plan, creating it when absent.
func (u *checkoutUC) shadow(ctx context.Context, studentID, planID string) (*model.Subscription, error) {
	existing, err := u.subs.FindPendingByStudentAndPlan(ctx, repository.NoTX, studentID, planID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	sub, err := model.NewPendingSubscription(uuid.NewString(), studentID, planID)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func checkoutFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrCheckoutCreationFailed):
		return "gateway_error"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrAlreadySubscribed),
		errors.Is(err, domain.ErrInvalidInstallments),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrPlanInactive),
		errors.Is(err, domain.ErrStudentNotFound):
		return "rejected"
	}
	return "error"
}
