package apiv1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/rs/zerolog"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/infra/adapters/gateway"
	"elearning-billing/internal/infra/logging"
	"elearning-billing/internal/usecase"
)

const (
	maxBodyBytes    = 1 << 16
	maxWebhookBytes = 1 << 20
	SignatureHeader = gateway.SignatureHeader
	maxReportWindow = 366 * 24 * time.Hour
)

type PlanCatalog interface {
	ListActive(ctx context.Context) ([]*model.Plan, error)
}

type Deps struct {
	Checkout       usecase.CheckoutUseCase
	Pix            usecase.PixUseCase
	Webhooks       usecase.WebhookUseCase
	Subscriptions  usecase.SubscriptionUseCase
	Settings       usecase.SettingsUseCase
	Reconciliation usecase.ReconciliationUseCase
	Plans          PlanCatalog
}

type Server struct {
	d    Deps
	auth *AuthManager
	log  *zerolog.Logger
}

func NewServer(d Deps, auth *AuthManager, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{d: d, auth: auth, log: &l}
}

// RegisterAPIV1 mounts every route at its absolute path.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Get("/plans", s.listPlans)
	r.Post("/webhooks/payment", s.receiveWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Require(RoleStudent))
		r.Post("/payments/checkout", s.createCheckout)
		r.Get("/payments/pix/{paymentId}/status", s.pixStatus)

		r.Post("/subscriptions", s.createSubscription)
		r.Get("/subscriptions/current", s.currentSubscription)
		r.Get("/subscriptions/entitlement", s.entitlement)
		r.Post("/subscriptions/{id}/cancel", s.cancelSubscription)
		r.Post("/subscriptions/{id}/reactivate", s.reactivateSubscription)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Require(RoleAdmin))
		r.Get("/admin/payment-config", s.getPaymentConfig)
		r.Put("/admin/payment-config", s.putPaymentConfig)
		r.Get("/admin/reconciliation", s.reconciliation)
	})
}

// fail logs errors that do not map to a known cause before rendering them.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if m := classify(err); m.err == nil || m.status >= 500 {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, r, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: missing body", domain.ErrInvalidArgument)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (string, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", fmt.Errorf("%w: invalid %s", domain.ErrInvalidArgument, name)
	}
	return id.String(), nil
}

func bodyUUID(v, name string) error {
	if _, err := uuid.Parse(v); err != nil {
		return fmt.Errorf("%w: invalid %s", domain.ErrInvalidArgument, name)
	}
	return nil
}

// ---- payments ----

func (s *Server) createCheckout(w http.ResponseWriter, r *http.Request) {
	var body CheckoutRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := bodyUUID(body.PlanID, "planId"); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.d.Checkout.CreateCheckout(r.Context(), usecase.CheckoutRequest{
		StudentID:    principalFrom(r.Context()).ID,
		PlanID:       body.PlanID,
		Method:       model.PaymentMethod(body.PaymentMethod),
		Installments: body.Installments,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCheckoutResponse(res))
}

func (s *Server) pixStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "paymentId")
	if err != nil {
		// no intent can have this id
		s.fail(w, r, domain.ErrNotFound)
		return
	}
	v, err := s.d.Pix.CheckStatus(r.Context(), principalFrom(r.Context()).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PixStatus{
		ID:          v.ID,
		Status:      string(v.Status),
		PaidAt:      v.PaidAt,
		ExpiresAt:   v.ExpiresAt,
		FinalAmount: money(v.FinalAmountCents),
	})
}

// receiveWebhook acknowledges only after the event's effects are committed.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err))
		return
	}
	outcome, err := s.d.Webhooks.HandleEvent(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome})
}

// ---- subscriptions ----

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var body CreateSubscriptionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := bodyUUID(body.PlanID, "planId"); err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.d.Subscriptions.Create(r.Context(), principalFrom(r.Context()).ID, body.PlanID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscription(sub))
}

func (s *Server) currentSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.d.Subscriptions.Current(r.Context(), principalFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) entitlement(w http.ResponseWriter, r *http.Request) {
	ok, err := s.d.Subscriptions.IsEntitled(r.Context(), principalFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"entitled": ok})
}

func (s *Server) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.d.Subscriptions.Cancel(r.Context(), principalFrom(r.Context()).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) reactivateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body ReactivateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.d.Subscriptions.Reactivate(r.Context(), principalFrom(r.Context()).ID, id,
		model.PaymentMethod(body.PaymentMethod), body.Installments)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCheckoutResponse(res))
}

// ---- plans ----

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.d.Plans.ListActive(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]Plan, 0, len(plans))
	for _, p := range plans {
		items = append(items, toPlan(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ---- admin ----

func (s *Server) getPaymentConfig(w http.ResponseWriter, r *http.Request) {
	cur, err := s.d.Settings.Current(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentConfig(cur))
}

func (s *Server) putPaymentConfig(w http.ResponseWriter, r *http.Request) {
	var body PaymentConfig
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.MaxInstallments == nil || body.PixDiscountPercent == nil ||
		body.InstallmentsWithoutInterest == nil || body.PixExpirationMinutes == nil {
		s.fail(w, r, fmt.Errorf("%w: all four settings are required", domain.ErrInvalidPaymentSetting))
		return
	}
	next, err := s.d.Settings.Update(r.Context(), principalFrom(r.Context()).ID, model.PaymentSettingsInput{
		MaxInstallments:             *body.MaxInstallments,
		PixDiscountPercent:          *body.PixDiscountPercent,
		InstallmentsWithoutInterest: *body.InstallmentsWithoutInterest,
		PixExpirationMinutes:        *body.PixExpirationMinutes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentConfig(next))
}

// reconciliation reads [from, to). Both bounds accept RFC 3339 timestamps or plain
// dates; to defaults to now and from to 24 hours before to.
func (s *Server) reconciliation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := time.Now().UTC()
	if q.Has("to") {
		t, err := parseBound(q.Get("to"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		to = t
	}
	from := to.Add(-24 * time.Hour)
	if q.Has("from") {
		t, err := parseBound(q.Get("from"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		from = t
	}
	if to.Sub(from) > maxReportWindow {
		s.fail(w, r, fmt.Errorf("%w: window longer than a year", domain.ErrInvalidArgument))
		return
	}
	report, err := s.d.Reconciliation.Report(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseBound(v string) (time.Time, error) {
	var ts time.Time
	if err := runtime.BindStringToObject(v, &ts); err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", domain.ErrInvalidArgument, v)
	}
	return ts.UTC(), nil
}
