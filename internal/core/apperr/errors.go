package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors for every failure kind the API distinguishes.
// Wrap them with context, e.g. fmt.Errorf("%w: cannot cancel this order", ErrInvalidState).
var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned for unknown orders, users, products or lines.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an order state-machine guard fails.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientFunds is returned when a wallet debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnsupportedMethod is returned for unknown payment or refund methods.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrExternalService is returned when a collaborator (gateway, catalog) fails.
	ErrExternalService = errors.New("external service error")
	// ErrSignature is returned when a webhook signature cannot be verified.
	ErrSignature = errors.New("signature verification failed")
	// ErrUnauthorized is returned when no valid identity accompanies a request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the identity lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

type kindMapping struct {
	err    error
	kind   string
	status int
}

var mappings = []kindMapping{
	{ErrValidation, "validation_error", http.StatusBadRequest},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrInvalidState, "invalid_state", http.StatusConflict},
	{ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{ErrUnsupportedMethod, "unsupported_method", http.StatusBadRequest},
	{ErrExternalService, "external_service_error", http.StatusBadGateway},
	{ErrSignature, "signature_error", http.StatusBadRequest},
	{ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{ErrForbidden, "forbidden", http.StatusForbidden},
}

// Kind returns the machine-readable kind of err, or "internal_error" for unknown faults.
func Kind(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.kind
		}
	}
	return "internal_error"
}

// Status maps err to the HTTP status code used at the transport boundary.
func Status(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// IsKnown reports whether err wraps one of the sentinel kinds.
func IsKnown(err error) bool {
	return Kind(err) != "internal_error"
}
