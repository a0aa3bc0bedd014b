package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("concurrent modification conflict")
	ErrRateLimited        = errors.New("too many requests")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")

	// Checkout preconditions
	ErrAlreadySubscribed     = errors.New("student already has an active subscription")
	ErrInvalidInstallments   = errors.New("installments out of allowed range")
	ErrInvalidPaymentMethod  = errors.New("unsupported payment method")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrPlanInactive          = errors.New("plan is not active")
	ErrStudentNotFound       = errors.New("student not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrNotCancelled          = errors.New("subscription is not cancelled")
	ErrInvalidPaymentSetting = errors.New("invalid payment configuration")

	// Gateway failures
	ErrCheckoutCreationFailed = errors.New("checkout creation failed")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrMalformedEvent         = errors.New("malformed webhook event")

	// ErrDataIntegrity marks an event that references state this service does not know about.
	ErrDataIntegrity = errors.New("data integrity violation")
)
