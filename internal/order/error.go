package order

import "baklava-be/internal/apperror"

var (
	ErrOrderNotFound        = apperror.NotFound("order not found")
	ErrInvalidID            = apperror.Validation("id", "invalid order id")
	ErrInvalidStatus        = apperror.Validation("status", "status must be one of: pending, pending_payment, processing, shipped, delivered, cancelled")
	ErrInvalidPaymentStatus = apperror.Validation("payment_status", "payment_status must be one of: unpaid, paid, refunded")
	ErrInvalidPaymentMethod = apperror.Validation("payment_method", "payment_method must be one of: card, cash")
	ErrInvalidTransition    = apperror.Conflict("status transition not allowed")
	ErrStaleVersion         = apperror.Conflict("order was changed by someone else, reload and try again")
	ErrNotCancellable       = apperror.Conflict("order can no longer be cancelled")
	ErrMissingOwner         = apperror.Validation("user_id", "payment has no owning user")
	ErrOwnerMismatch        = apperror.Validation("user_id", "payment owner does not match the order")
	ErrSessionNotAttached   = apperror.New(apperror.KindCorrelationLoss, "payment session could not be attached to the order")
)
