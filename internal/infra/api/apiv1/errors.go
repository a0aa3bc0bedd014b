package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"elearning-billing/internal/domain"
)

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

type errorMapping struct {
	err       error
	status    int
	code      string
	retryable bool
}

// errorTable is checked in order; the first errors.Is match wins. Wrapped errors that
// carry more than one sentinel resolve to the earlier entry.
var errorTable = []errorMapping{
	{domain.ErrCheckoutCreationFailed, http.StatusBadGateway, "CHECKOUT_CREATION_FAILED", true},
	{domain.ErrGatewayUnavailable, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", true},
	{domain.ErrAlreadySubscribed, http.StatusConflict, "ALREADY_SUBSCRIBED", false},
	{domain.ErrInvalidInstallments, http.StatusUnprocessableEntity, "INVALID_INSTALLMENTS", false},
	{domain.ErrInvalidPaymentMethod, http.StatusUnprocessableEntity, "INVALID_PAYMENT_METHOD", false},
	{domain.ErrPlanNotFound, http.StatusNotFound, "PLAN_NOT_FOUND", false},
	{domain.ErrPlanInactive, http.StatusUnprocessableEntity, "PLAN_INACTIVE", false},
	{domain.ErrStudentNotFound, http.StatusNotFound, "STUDENT_NOT_FOUND", false},
	{domain.ErrSubscriptionNotFound, http.StatusNotFound, "NOT_FOUND", false},
	{domain.ErrNotCancelled, http.StatusConflict, "SUBSCRIPTION_NOT_CANCELLED", false},
	{domain.ErrInvalidSignature, http.StatusBadRequest, "INVALID_SIGNATURE", false},
	{domain.ErrMalformedEvent, http.StatusBadRequest, "INVALID_ARGUMENT", false},
	{domain.ErrInvalidPaymentSetting, http.StatusUnprocessableEntity, "INVALID_ARGUMENT", false},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT", false},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", false},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", false},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", false},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", true},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT", true},
	{domain.ErrAlreadyExists, http.StatusConflict, "CONFLICT", false},
}

func classify(err error) errorMapping {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m
		}
	}
	return errorMapping{status: http.StatusInternalServerError, code: "INTERNAL"}
}

// writeError renders err as the stable error body. Unclassified errors become INTERNAL
// without leaking their text.
func writeError(w http.ResponseWriter, _ *http.Request, err error) {
	m := classify(err)
	msg := "internal error"
	if m.err != nil {
		msg = m.err.Error()
	}
	if m.status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, m.status, errorBody{Error: apiError{Code: m.code, Message: msg, Retryable: m.retryable}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
