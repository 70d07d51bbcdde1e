package domain

import "errors"

var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrStorageConflict        = errors.New("storage conflict")
	ErrInvalidInput           = errors.New("invalid input")

	// ErrDuplicateOrder is returned when an idempotency key was already used to place an order.
	ErrDuplicateOrder = errors.New("order already placed for idempotency key")

	// ErrUnavailable is returned when a collaborator refuses calls, i.e. an open circuit breaker.
	ErrUnavailable = errors.New("service unavailable")
)
