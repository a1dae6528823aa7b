package payment

import (
	"encoding/json"
	"strconv"
	"strings"

	"baklava-be/internal/address"
	"baklava-be/internal/money"
	"baklava-be/internal/order"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
)

const ProviderStripe = "STRIPE"

// Metadata keys attached to every checkout session and its payment intent.
const (
	MetaOrderID       = "order_id"
	MetaUserID        = "user_id"
	MetaSubtotalCents = "subtotal_cents"
	MetaTaxCents      = "tax_cents"
	MetaTaxRateBP     = "tax_rate_bp"
	MetaShipName      = "ship_full_name"
	MetaShipPhone     = "ship_phone"
	MetaShipStreet    = "ship_street"
	MetaShipCity      = "ship_city"
	MetaShipPostal    = "ship_postal_code"
	MetaShipCountry   = "ship_country"
)

const (
	PaymentStatusPaid   = string(stripe.CheckoutSessionPaymentStatusPaid)
	PaymentStatusUnpaid = string(stripe.CheckoutSessionPaymentStatusUnpaid)

	IntentSucceeded = string(stripe.PaymentIntentStatusSucceeded)
)

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

type SessionRequest struct {
	OrderID         uuid.UUID
	ReferenceNumber string
	UserID          uint
	CustomerEmail   string
	Currency        string
	Totals          money.Totals
	Shipping        address.ShippingAddress
	SuccessURL      string
	CancelURL       string
}

// Metadata builds the correlation data stored on the gateway side.
func (r SessionRequest) Metadata() map[string]string {
	return map[string]string{
		MetaOrderID:       r.OrderID.String(),
		MetaUserID:        strconv.FormatUint(uint64(r.UserID), 10),
		MetaSubtotalCents: strconv.FormatInt(r.Totals.SubtotalCents, 10),
		MetaTaxCents:      strconv.FormatInt(r.Totals.TaxCents, 10),
		MetaTaxRateBP:     strconv.FormatInt(r.Totals.RateBP, 10),
		MetaShipName:      r.Shipping.FullName,
		MetaShipPhone:     r.Shipping.Phone,
		MetaShipStreet:    r.Shipping.Street,
		MetaShipCity:      r.Shipping.City,
		MetaShipPostal:    r.Shipping.PostalCode,
		MetaShipCountry:   r.Shipping.Country,
	}
}

// Session is the subset of a Stripe checkout session the shop uses.
type Session struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntentID   string            `json:"payment_intent"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Confirmation converts a paid session into the order-side payment signal.
func (s *Session) Confirmation() order.PaymentConfirmation {
	pc := confirmationFromMetadata(s.Metadata)
	pc.SessionID = s.ID
	pc.PaymentIntentID = s.PaymentIntentID
	pc.AmountTotalCents = s.AmountTotal
	if pc.OrderID == nil && s.ClientReferenceID != "" {
		if id, err := uuid.Parse(s.ClientReferenceID); err == nil {
			pc.OrderID = &id
		}
	}
	return pc
}

type PaymentIntent struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

func (p *PaymentIntent) Succeeded() bool {
	return p.Status == IntentSucceeded
}

// Confirmation converts a succeeded intent paid through sessionID.
func (p *PaymentIntent) Confirmation(sessionID string) order.PaymentConfirmation {
	pc := confirmationFromMetadata(p.Metadata)
	pc.SessionID = sessionID
	pc.PaymentIntentID = p.ID
	pc.AmountTotalCents = p.Amount
	return pc
}

func confirmationFromMetadata(md map[string]string) order.PaymentConfirmation {
	var pc order.PaymentConfirmation
	if id, err := uuid.Parse(md[MetaOrderID]); err == nil {
		pc.OrderID = &id
	}
	if uid, err := strconv.ParseUint(md[MetaUserID], 10, 64); err == nil {
		pc.UserID = uint(uid)
	}
	pc.SubtotalCents, _ = strconv.ParseInt(md[MetaSubtotalCents], 10, 64)
	pc.TaxCents, _ = strconv.ParseInt(md[MetaTaxCents], 10, 64)
	pc.TaxRateBP, _ = strconv.ParseInt(md[MetaTaxRateBP], 10, 64)

	ship := address.ShippingAddress{
		FullName:   md[MetaShipName],
		Phone:      md[MetaShipPhone],
		Street:     md[MetaShipStreet],
		City:       md[MetaShipCity],
		PostalCode: md[MetaShipPostal],
		Country:    md[MetaShipCountry],
	}
	if strings.TrimSpace(ship.Street) != "" {
		pc.Shipping = &ship
	}
	return pc
}

// Event is a webhook delivery envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookEvent is a stored webhook delivery.
type WebhookEvent struct {
	Provider       string
	EventID        string
	EventType      string
	ExternalID     string
	Payload        json.RawMessage
	SignatureValid bool
}
