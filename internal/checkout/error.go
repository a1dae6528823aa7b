package checkout

import "baklava-be/internal/apperror"

var (
	ErrAlreadyPaid     = apperror.Conflict("order is already paid")
	ErrNotCardOrder    = apperror.Conflict("order is not paid by card")
	ErrNotPayable      = apperror.Conflict("order can no longer be paid")
	ErrPricesChanged   = apperror.Conflict("catalog prices changed since the order was placed, place a new order")
	ErrItemsMismatch   = apperror.Validation("items", "cart does not match the order")
	ErrSessionRequired = apperror.Validation("session_id", "session_id is required")
	ErrSessionMismatch = apperror.Validation("session_id", "payment session does not belong to this order")
)
