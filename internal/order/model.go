package order

import (
	"time"

	"baklava-be/internal/address"
	"baklava-be/internal/cart"
	"baklava-be/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingPayment Status = "pending_payment"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPendingPayment, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCard PaymentMethod = "card"
	MethodCash PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCard || m == MethodCash
}

type Order struct {
	ID              uuid.UUID               `json:"id"`
	ReferenceNumber string                  `json:"reference_number"`
	UserID          uint                    `json:"user_id"`
	Subtotal        decimal.Decimal         `json:"subtotal"`
	TaxAmount       decimal.Decimal         `json:"tax_amount"`
	TaxRate         decimal.Decimal         `json:"tax_rate"`
	TotalAmount     decimal.Decimal         `json:"total_amount"`
	Status          Status                  `json:"status"`
	PaymentStatus   PaymentStatus           `json:"payment_status"`
	PaymentMethod   PaymentMethod           `json:"payment_method"`
	Shipping        address.ShippingAddress `json:"shipping"`
	Notes           *string                 `json:"notes,omitempty"`
	SessionID       *string                 `json:"session_id,omitempty"`
	PaymentIntentID *string                 `json:"payment_intent_id,omitempty"`
	Version         int                     `json:"version"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	Items           []Item                  `json:"items,omitempty"`
}

// TotalCents is the stored total in minor units.
func (o *Order) TotalCents() int64 {
	c, _ := money.ToCents(o.TotalAmount)
	return c
}

// MatchesQuote reports whether the stored totals equal a fresh quote.
func (o *Order) MatchesQuote(q *cart.Quote) bool {
	sub, _ := money.ToCents(o.Subtotal)
	tax, _ := money.ToCents(o.TaxAmount)
	return sub == q.Totals.SubtotalCents &&
		tax == q.Totals.TaxCents &&
		o.TotalCents() == q.Totals.TotalCents
}

func (o *Order) Owned(userID uint) bool {
	return userID != 0 && o.UserID == userID
}

type Item struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CreateInput struct {
	Items         []cart.Item             `json:"items"`
	Shipping      address.ShippingAddress `json:"shipping"`
	PaymentMethod PaymentMethod           `json:"payment_method"`
	Notes         string                  `json:"notes"`
	Lang          string                  `json:"-"`
}

type ListFilter struct {
	UserID        *uint
	Status        *Status
	PaymentStatus *PaymentStatus
	Limit         int
	Page          int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (f *ListFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Page <= 0 {
		f.Page = 1
	}
}

type CancelResult string

const (
	CancelCancelled CancelResult = "cancelled"
	CancelDeleted   CancelResult = "deleted"
	CancelSkipped   CancelResult = "skipped"
)

type CancelMode string

const (
	CancelSoft CancelMode = "soft"
	CancelHard CancelMode = "hard"
)

// StatusUpdate is an admin edit. Nil fields keep their current value.
type StatusUpdate struct {
	Status          *Status        `json:"status"`
	PaymentStatus   *PaymentStatus `json:"payment_status"`
	Force           bool           `json:"force"`
	Reason          string         `json:"reason"`
	ExpectedVersion *int           `json:"expected_version"`
}

// StatusChange is a validated transition ready to persist.
type StatusChange struct {
	OrderID         uuid.UUID
	ActorID         uint
	Actor           Actor
	FromStatus      Status
	ToStatus        Status
	FromPayment     PaymentStatus
	ToPayment       PaymentStatus
	Forced          bool
	Reason          string
	ExpectedVersion int
}

type StatusEvent struct {
	ID          int64         `json:"id"`
	OrderID     uuid.UUID     `json:"order_id"`
	ActorID     *uint         `json:"actor_id"`
	Actor       Actor         `json:"actor"`
	FromStatus  Status        `json:"from_status"`
	ToStatus    Status        `json:"to_status"`
	FromPayment PaymentStatus `json:"from_payment_status"`
	ToPayment   PaymentStatus `json:"to_payment_status"`
	Forced      bool          `json:"forced"`
	Reason      *string       `json:"reason,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PaymentConfirmation is a verified "checkout completed" signal from the
// payment gateway, produced by the webhook or by manual confirmation.
type PaymentConfirmation struct {
	SessionID        string
	PaymentIntentID  string
	AmountTotalCents int64
	OrderID          *uuid.UUID
	UserID           uint
	SubtotalCents    int64
	TaxCents         int64
	TaxRateBP        int64
	Shipping         *address.ShippingAddress
}

type ApplyResult string

const (
	ApplyApplied        ApplyResult = "applied"
	ApplyAlreadyApplied ApplyResult = "already_applied"
	ApplyCreated        ApplyResult = "created"
)

// MarkPaidResult reports what a conditional mark-paid did.
type MarkPaidResult struct {
	Updated    bool
	StatusNow  Status
	SessionNow *string
}
