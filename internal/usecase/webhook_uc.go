package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/adapter"
	"elearning-billing/internal/domain/ports/repository"
	"elearning-billing/internal/infra/logging"
	"elearning-billing/internal/infra/metrics"
)

var _ WebhookUseCase = (*webhookUC)(nil)

// Outcome tells the caller what happened to an authenticated delivery.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type WebhookUseCase interface {
	// HandleEvent authenticates, records and applies one gateway delivery.
	// A nil error means the event is durably handled and may be acknowledged.
	HandleEvent(ctx context.Context, payload []byte, signature string) (Outcome, error)
}

type webhookUC struct {
	events   repository.WebhookEventRepository
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	pixes    repository.PixPaymentRepository
	pix      PixUseCase
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

func NewWebhookUseCase(
	events repository.WebhookEventRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	pixes repository.PixPaymentRepository,
	pix PixUseCase,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		events:   events,
		subs:     subs,
		payments: payments,
		pixes:    pixes,
		pix:      pix,
		tm:       tm,
		gateway:  gateway,
		notifier: notifier,
		log:      &l,
		now:      time.Now,
	}
}

func (u *webhookUC) HandleEvent(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	start := time.Now()

	if err := u.gateway.VerifyWebhookSignature(payload, signature); err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		metrics.ObserveWebhook("rejected", time.Since(start).Seconds())
		u.log.Warn().Err(err).Msg("webhook signature rejected")
		if errors.Is(err, domain.ErrInvalidSignature) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	ev, err := model.ParseWebhookEvent(payload, u.now())
	if err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		metrics.ObserveWebhook("rejected", time.Since(start).Seconds())
		return "", err
	}

	ctx = logging.WithEventID(ctx, ev.ID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "WebhookUC.HandleEvent")()

	outcome, notes, err := u.apply(ctx, ev)
	result := string(outcome)
	if err != nil {
		result = "error"
	}
	metrics.IncWebhookEvent(string(ev.Kind), result)
	metrics.ObserveWebhook(result, time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).Str("type", ev.RawType).Msg("webhook event not applied")
		return "", err
	}
	dispatch(ctx, u.notifier, log, notes)

	log.Info().Str("type", ev.RawType).Str("outcome", result).Msg("webhook event handled")
	return outcome, nil
}

// apply records the event id and applies the event in one transaction.
func (u *webhookUC) apply(ctx context.Context, ev *model.WebhookEvent) (Outcome, []model.Notification, error) {
	var (
		outcome Outcome
		notes   []model.Notification
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		outcome, notes = "", nil
		fresh, err := u.events.Record(ctx, tx, ev)
		if err != nil {
			return err
		}
		if !fresh {
			outcome = OutcomeDuplicate
			return nil
		}

		switch d := ev.Data.(type) {
		case *model.SubscriptionEventData:
			if ev.Kind == model.EventSubscriptionDeleted {
				outcome, notes, err = u.onSubscriptionDeleted(ctx, tx, ev, d)
			} else {
				outcome, err = u.onSubscriptionChanged(ctx, tx, ev, d)
			}
		case *model.InvoiceEventData:
			if ev.Kind == model.EventInvoicePaymentSucceeded {
				outcome, notes, err = u.onInvoicePaid(ctx, tx, ev, d)
			} else {
				outcome, notes, err = u.onInvoiceFailed(ctx, tx, ev, d)
			}
		case *model.PixEventData:
			if ev.Kind == model.EventPixPaymentSucceeded {
				outcome, notes, err = u.onPixPaid(ctx, tx, ev, d)
			} else {
				outcome, err = u.onPixExpired(ctx, tx, d)
			}
		default:
			u.log.Info().Str("type", ev.RawType).Msg("unhandled webhook event type acknowledged")
			outcome = OutcomeIgnored
		}
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, notes, nil
}

func (u *webhookUC) onSubscriptionChanged(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent, d *model.SubscriptionEventData) (Outcome, error) {
	status, ok := model.MapGatewaySubscriptionStatus(d.GatewayStatus)
	if !ok {
		u.log.Warn().Str("gateway_status", d.GatewayStatus).Msg("unknown gateway subscription status")
		return OutcomeIgnored, nil
	}
	eventAt := ev.CreatedAt

	sub, err := u.subs.FindByGatewayID(ctx, tx, d.GatewaySubscriptionID)
	switch {
	case err == nil:
		// cancelled is terminal for gateway events; a late update hits the tombstone
		if sub.Status == model.SubscriptionStatusCancelled {
			return OutcomeIgnored, nil
		}
		if status == model.SubscriptionStatusActive {
			if busy, err := u.activeElsewhere(ctx, tx, sub.StudentID, sub.ID); err != nil || busy {
				return OutcomeIgnored, err
			}
		}
		upd := model.SubscriptionUpdate{
			Status:      status,
			From:        sourcesFor(status),
			PeriodStart: d.PeriodStart,
			PeriodEnd:   d.PeriodEnd,
			EventAt:     &eventAt,
		}
		if status == model.SubscriptionStatusCancelled {
			upd.CancelledAt = &eventAt
		}
		return u.transition(ctx, tx, sub.ID, upd)
	case !errors.Is(err, domain.ErrNotFound):
		return "", err
	}

	gatewayID := d.GatewaySubscriptionID
	if local, err := u.shadowFor(ctx, tx, d.Metadata); err != nil {
		return "", err
	} else if local != nil {
		if status == model.SubscriptionStatusActive {
			if busy, err := u.activeElsewhere(ctx, tx, local.StudentID, local.ID); err != nil || busy {
				return OutcomeIgnored, err
			}
		}
		upd := model.SubscriptionUpdate{
			Status:           status,
			From:             []model.SubscriptionStatus{local.Status},
			GatewayID:        &gatewayID,
			PeriodStart:      d.PeriodStart,
			PeriodEnd:        d.PeriodEnd,
			ClearCancelledAt: status != model.SubscriptionStatusCancelled,
			EventAt:          &eventAt,
		}
		if status == model.SubscriptionStatusCancelled {
			upd.ClearCancelledAt = false
			upd.CancelledAt = &eventAt
		}
		outcome, err := u.transition(ctx, tx, local.ID, upd)
		if err != nil || outcome != OutcomeApplied {
			return outcome, err
		}
		// a reactivated row moves to the new gateway subscription
		if local.GatewaySubscriptionID != nil && *local.GatewaySubscriptionID != gatewayID {
			if err := retireGatewayID(ctx, u.subs, tx, local, u.now()); err != nil {
				return "", err
			}
		}
		return outcome, nil
	}

	if !validID(d.Metadata.StudentID) || !validID(d.Metadata.PlanID) {
		u.log.Warn().Str("gateway_subscription_id", gatewayID).Msg("subscription event without usable metadata")
		return OutcomeIgnored, nil
	}
	if status == model.SubscriptionStatusActive {
		if busy, err := u.activeElsewhere(ctx, tx, d.Metadata.StudentID, ""); err != nil || busy {
			return OutcomeIgnored, err
		}
	}
	now := u.now()
	sub = &model.Subscription{
		ID:                    uuid.NewString(),
		StudentID:             d.Metadata.StudentID,
		PlanID:                d.Metadata.PlanID,
		Status:                status,
		GatewaySubscriptionID: &gatewayID,
		CurrentPeriodStart:    d.PeriodStart,
		CurrentPeriodEnd:      d.PeriodEnd,
		CreatedAt:             now,
		UpdatedAt:             now,
		GatewayEventAt:        &eventAt,
	}
	if status == model.SubscriptionStatusCancelled {
		sub.CancelledAt = &eventAt
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return "", err
	}
	metrics.IncSubscriptionTransition(status, "webhook")
	return OutcomeApplied, nil
}

func (u *webhookUC) onSubscriptionDeleted(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent, d *model.SubscriptionEventData) (Outcome, []model.Notification, error) {
	at := ev.CreatedAt
	gatewayID := d.GatewaySubscriptionID

	sub, err := u.subs.FindByGatewayID(ctx, tx, gatewayID)
	if errors.Is(err, domain.ErrNotFound) {
		sub, err = u.shadowFor(ctx, tx, d.Metadata)
		// a reactivation target stays cancelled; the tombstone absorbs a late created
		if err == nil && (sub == nil || sub.Status == model.SubscriptionStatusCancelled) {
			return u.tombstone(ctx, tx, ev, d)
		}
	}
	if err != nil {
		return "", nil, err
	}

	// deletion is terminal and ignores event ordering
	upd := model.SubscriptionUpdate{
		Status:      model.SubscriptionStatusCancelled,
		From:        model.LiveSubscriptionStatuses,
		CancelledAt: &at,
		EventAt:     &at,
		IgnoreOrder: true,
	}
	if sub.GatewaySubscriptionID == nil {
		upd.GatewayID = &gatewayID
	}
	ok, err := u.subs.UpdateIf(ctx, tx, sub.ID, upd)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return OutcomeIgnored, nil, nil
	}
	metrics.IncSubscriptionTransition(model.SubscriptionStatusCancelled, "webhook")
	return OutcomeApplied, []model.Notification{{
		Kind:           model.NotificationSubscriptionCancelled,
		StudentID:      sub.StudentID,
		SubscriptionID: sub.ID,
		Data:           map[string]string{"source": "gateway"},
		CreatedAt:      u.now(),
	}}, nil
}

// tombstone records a deletion that arrived before the subscription was known so
// that a delayed created/updated event is absorbed.
func (u *webhookUC) tombstone(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent, d *model.SubscriptionEventData) (Outcome, []model.Notification, error) {
	if !validID(d.Metadata.StudentID) || !validID(d.Metadata.PlanID) {
		u.log.Warn().Str("gateway_subscription_id", d.GatewaySubscriptionID).Msg("deletion for unknown subscription without metadata")
		return OutcomeIgnored, nil, nil
	}
	at := ev.CreatedAt
	gatewayID := d.GatewaySubscriptionID
	now := u.now()
	if err := u.subs.Save(ctx, tx, &model.Subscription{
		ID:                    uuid.NewString(),
		StudentID:             d.Metadata.StudentID,
		PlanID:                d.Metadata.PlanID,
		Status:                model.SubscriptionStatusCancelled,
		GatewaySubscriptionID: &gatewayID,
		CreatedAt:             now,
		UpdatedAt:             now,
		CancelledAt:           &at,
		GatewayEventAt:        &at,
	}); err != nil {
		return "", nil, err
	}
	return OutcomeApplied, nil, nil
}

func (u *webhookUC) onInvoicePaid(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent, d *model.InvoiceEventData) (Outcome, []model.Notification, error) {
	sub, err := u.invoiceSubscription(ctx, tx, d)
	if err != nil {
		return "", nil, err
	}
	paidAt := ev.CreatedAt

	fresh, err := u.recordAttempt(ctx, tx, sub, d, model.PaymentStatusPaid, &paidAt)
	if err != nil {
		return "", nil, err
	}

	eventAt := ev.CreatedAt
	busy, err := u.activeElsewhere(ctx, tx, sub.StudentID, sub.ID)
	if err != nil {
		return "", nil, err
	}
	activated := false
	if !busy {
		ok, err := u.subs.UpdateIf(ctx, tx, sub.ID, model.SubscriptionUpdate{
			Status:      model.SubscriptionStatusActive,
			From:        sourcesFor(model.SubscriptionStatusActive),
			PeriodStart: d.PeriodStart,
			PeriodEnd:   d.PeriodEnd,
			EventAt:     &eventAt,
		})
		if err != nil {
			return "", nil, err
		}
		activated = ok && sub.Status != model.SubscriptionStatusActive
	}
	if activated {
		metrics.IncSubscriptionTransition(model.SubscriptionStatusActive, "webhook")
	}
	if !fresh && !activated {
		return OutcomeIgnored, nil, nil
	}

	var notes []model.Notification
	if fresh {
		metrics.IncPayment(string(model.PaymentMethodCard), string(model.PaymentStatusPaid))
		metrics.AddPaymentRevenue(currencyOf(d), d.AmountCents)
		notes = append(notes, model.Notification{
			Kind:           model.NotificationPaymentConfirmed,
			StudentID:      sub.StudentID,
			SubscriptionID: sub.ID,
			Data: map[string]string{
				"method":       string(model.PaymentMethodCard),
				"amount_cents": strconv.FormatInt(d.AmountCents, 10),
				"currency":     currencyOf(d),
			},
			CreatedAt: u.now(),
		})
	}
	return OutcomeApplied, notes, nil
}

func (u *webhookUC) onInvoiceFailed(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent, d *model.InvoiceEventData) (Outcome, []model.Notification, error) {
	sub, err := u.invoiceSubscription(ctx, tx, d)
	if err != nil {
		return "", nil, err
	}

	fresh, err := u.recordAttempt(ctx, tx, sub, d, model.PaymentStatusFailed, nil)
	if err != nil {
		return "", nil, err
	}
	if fresh {
		metrics.IncPayment(string(model.PaymentMethodCard), string(model.PaymentStatusFailed))
	}

	eventAt := ev.CreatedAt
	suspended, err := u.subs.UpdateIf(ctx, tx, sub.ID, model.SubscriptionUpdate{
		Status:  model.SubscriptionStatusSuspended,
		From:    []model.SubscriptionStatus{model.SubscriptionStatusActive, model.SubscriptionStatusPending},
		EventAt: &eventAt,
	})
	if err != nil {
		return "", nil, err
	}
	if !fresh && !suspended {
		return OutcomeIgnored, nil, nil
	}
	if suspended {
		metrics.IncSubscriptionTransition(model.SubscriptionStatusSuspended, "webhook")
	}
	if sub.Status == model.SubscriptionStatusCancelled {
		// attempt kept for the ledger; the student has nothing to fix
		return OutcomeApplied, nil, nil
	}
	return OutcomeApplied, []model.Notification{{
		Kind:           model.NotificationPaymentFailed,
		StudentID:      sub.StudentID,
		SubscriptionID: sub.ID,
		Data: map[string]string{
			"invoice_id": d.InvoiceID,
			"attempt":    strconv.Itoa(d.Attempt),
		},
		CreatedAt: u.now(),
	}}, nil
}

func (u *webhookUC) invoiceSubscription(ctx context.Context, tx repository.Tx, d *model.InvoiceEventData) (*model.Subscription, error) {
	sub, err := u.subs.FindByGatewayID(ctx, tx, d.GatewaySubscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: invoice %s references unknown subscription %s", domain.ErrDataIntegrity, d.InvoiceID, d.GatewaySubscriptionID)
	}
	return sub, err
}

// recordAttempt stores one settlement attempt keyed by its attempt key. A redelivered
// attempt only moves a pending row forward. It reports whether this call changed the ledger.
func (u *webhookUC) recordAttempt(ctx context.Context, tx repository.Tx, sub *model.Subscription, d *model.InvoiceEventData, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	now := u.now()
	p := &model.Payment{
		ID:               uuid.NewString(),
		StudentID:        sub.StudentID,
		SubscriptionID:   &sub.ID,
		AmountCents:      d.AmountCents,
		Currency:         currencyOf(d),
		Status:           status,
		Method:           model.PaymentMethodCard,
		GatewayChargeID:  d.AttemptKey(),
		GatewayInvoiceID: &d.InvoiceID,
		PaidAt:           paidAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if d.Installments > 0 {
		n := d.Installments
		p.Installments = &n
	}
	inserted, err := u.payments.Insert(ctx, tx, p)
	if err != nil || inserted {
		return inserted, err
	}

	existing, err := u.payments.FindByGatewayChargeID(ctx, tx, p.GatewayChargeID)
	if err != nil {
		return false, err
	}
	if existing.Status != model.PaymentStatusPending {
		return false, nil
	}
	return u.payments.UpdateStatusIf(ctx, tx, existing.ID, status, []model.PaymentStatus{model.PaymentStatusPending}, paidAt)
}

func (u *webhookUC) onPixPaid(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent, d *model.PixEventData) (Outcome, []model.Notification, error) {
	pix, err := u.findPix(ctx, tx, d)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: pix charge %s is unknown", domain.ErrDataIntegrity, d.ChargeID)
	}
	if err != nil {
		return "", nil, err
	}
	paidAt := ev.CreatedAt
	if d.PaidAt != nil {
		paidAt = *d.PaidAt
	}
	won, notes, err := u.pix.ConfirmPaid(ctx, tx, pix, paidAt)
	if err != nil {
		return "", nil, err
	}
	if !won {
		return OutcomeIgnored, nil, nil
	}
	return OutcomeApplied, notes, nil
}

func (u *webhookUC) onPixExpired(ctx context.Context, tx repository.Tx, d *model.PixEventData) (Outcome, error) {
	pix, err := u.findPix(ctx, tx, d)
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Str("charge_id", d.ChargeID).Msg("expiry for unknown pix charge")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}
	ok, err := u.pix.Expire(ctx, tx, pix)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}

func (u *webhookUC) findPix(ctx context.Context, tx repository.Tx, d *model.PixEventData) (*model.PixPayment, error) {
	pix, err := u.pixes.FindByGatewayChargeID(ctx, tx, d.ChargeID)
	if errors.Is(err, domain.ErrNotFound) && validID(d.PixPaymentID) {
		return u.pixes.FindByID(ctx, tx, d.PixPaymentID)
	}
	return pix, err
}

// shadowFor returns the local row a checkout created for this gateway subscription:
// a pending shadow, or the cancelled row a reactivation targets. A reactivation
// target may still carry the gateway id of the subscription that was cancelled.
func (u *webhookUC) shadowFor(ctx context.Context, tx repository.Tx, meta model.EventMetadata) (*model.Subscription, error) {
	if !validID(meta.SubscriptionID) {
		return nil, nil
	}
	sub, err := u.subs.FindByID(ctx, tx, meta.SubscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if meta.StudentID != "" && sub.StudentID != meta.StudentID {
		return nil, nil
	}
	switch sub.Status {
	case model.SubscriptionStatusPending:
		if sub.GatewaySubscriptionID == nil {
			return sub, nil
		}
	case model.SubscriptionStatusCancelled:
		if meta.IsReactivation() {
			return sub, nil
		}
	}
	return nil, nil
}

// activeElsewhere reports whether the student already holds an active row other
// than exceptID. Activating another row would then break the one-active rule.
func (u *webhookUC) activeElsewhere(ctx context.Context, tx repository.Tx, studentID, exceptID string) (bool, error) {
	active, err := u.subs.FindActiveByStudent(ctx, tx, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if active.ID == exceptID {
		return false, nil
	}
	u.log.Error().
		Str("student_id", studentID).
		Str("subscription_id", exceptID).
		Str("active_subscription_id", active.ID).
		Msg("activation skipped, student already has an active subscription")
	return true, nil
}

func (u *webhookUC) transition(ctx context.Context, tx repository.Tx, id string, upd model.SubscriptionUpdate) (Outcome, error) {
	ok, err := u.subs.UpdateIf(ctx, tx, id, upd)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeIgnored, nil
	}
	metrics.IncSubscriptionTransition(upd.Status, "webhook")
	return OutcomeApplied, nil
}

// sourcesFor lists the live statuses a gateway event may move to status.
func sourcesFor(status model.SubscriptionStatus) []model.SubscriptionStatus {
	out := make([]model.SubscriptionStatus, 0, len(model.LiveSubscriptionStatuses))
	for _, s := range model.LiveSubscriptionStatuses {
		if s == status || s.CanTransitionTo(status) {
			out = append(out, s)
		}
	}
	return out
}

func currencyOf(d *model.InvoiceEventData) string {
	if d.Currency == "" {
		return "BRL"
	}
	return strings.ToUpper(d.Currency)
}

func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
