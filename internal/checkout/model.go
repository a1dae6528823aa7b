package checkout

import (
	"baklava-be/internal/order"

	"github.com/google/uuid"
)

type SessionResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// Confirmation is the payment state shown on the redirect-back page.
type Confirmation struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	// Settled is true once polling can stop.
	Settled bool `json:"settled"`
}

func confirmationOf(o *order.Order) *Confirmation {
	return &Confirmation{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Settled:       o.PaymentStatus != order.PaymentUnpaid || o.Status == order.StatusCancelled,
	}
}
