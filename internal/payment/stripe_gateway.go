package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// SignatureTolerance bounds the age of a webhook timestamp.
const SignatureTolerance = 5 * time.Minute

const defaultNetworkRetries = 2

var hundredPercent = decimal.NewFromInt(100)

var (
	ErrMissingSignature = apperror.Unauthenticated("missing webhook signature")
	ErrInvalidSignature = apperror.Unauthenticated("invalid webhook signature")
	ErrStaleSignature   = apperror.Unauthenticated("webhook timestamp outside tolerance")
)

type stripeGateway struct {
	webhookSecret string
	sessions      session.Client
	intents       paymentintent.Client
}

// ----------------- Constructor -----------------

func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}
	if webhookSecret == "" {
		logger.L().Warn("Stripe webhook secret is empty, every webhook will be rejected")
	}

	return newStripeGateway(secretKey, webhookSecret, &http.Client{Timeout: 15 * time.Second}, defaultNetworkRetries)
}

func newStripeGateway(secretKey, webhookSecret string, httpClient *http.Client, retries int64) *stripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     logger.L().Sugar(),
		MaxNetworkRetries: stripe.Int64(retries),
	})

	return &stripeGateway{
		webhookSecret: webhookSecret,
		sessions:      session.Client{B: backend, Key: secretKey},
		intents:       paymentintent.Client{B: backend, Key: secretKey},
	}
}

// ----------------- CreateCheckoutSession -----------------

func (s *stripeGateway) CreateCheckoutSession(ctx context.Context, in SessionRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", "Stripe"),
		zap.String("method", "CreateCheckoutSession"),
		zap.String("order_id", in.OrderID.String()),
		zap.Int64("amount", in.Totals.TotalCents),
		zap.String("currency", in.Currency),
	)

	md := in.Metadata()
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.OrderID.String()),
		Metadata:          md,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: md},
	}
	params.Context = ctx
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}

	params.LineItems = append(params.LineItems, lineItem(in.Currency, "Order "+in.ReferenceNumber, in.Totals.SubtotalCents))
	if in.Totals.TaxCents > 0 {
		name := fmt.Sprintf("Tax (%s%%)", in.Totals.Rate().Mul(hundredPercent).String())
		params.LineItems = append(params.LineItems, lineItem(in.Currency, name, in.Totals.TaxCents))
	}

	timer := metrics.StartTimer()
	cs, err := s.sessions.New(params)
	if err != nil {
		log.Error("failed to create checkout session", zap.Error(err), zap.Duration("latency", timer.Duration()))
		return nil, gatewayError("failed to create checkout session", err)
	}

	log.Info("checkout session created", zap.String("session_id", cs.ID), zap.Duration("latency", timer.Duration()))
	return sessionFromStripe(cs), nil
}

func lineItem(currency, name string, cents int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(cents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

// ----------------- Retrieve -----------------

func (s *stripeGateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", "Stripe"),
		zap.String("method", "RetrieveCheckoutSession"),
		zap.String("session_id", sessionID),
	)

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	timer := metrics.StartTimer()
	cs, err := s.sessions.Get(sessionID, params)
	if err != nil {
		log.Error("failed to retrieve checkout session", zap.Error(err), zap.Duration("latency", timer.Duration()))
		return nil, gatewayError("failed to retrieve checkout session", err)
	}

	log.Debug("checkout session retrieved",
		zap.String("status", string(cs.Status)),
		zap.String("payment_status", string(cs.PaymentStatus)),
		zap.Duration("latency", timer.Duration()),
	)
	return sessionFromStripe(cs), nil
}

func (s *stripeGateway) RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", "Stripe"),
		zap.String("method", "RetrievePaymentIntent"),
		zap.String("payment_intent_id", paymentIntentID),
	)

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	timer := metrics.StartTimer()
	pi, err := s.intents.Get(paymentIntentID, params)
	if err != nil {
		log.Error("failed to retrieve payment intent", zap.Error(err), zap.Duration("latency", timer.Duration()))
		return nil, gatewayError("failed to retrieve payment intent", err)
	}

	return &PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Metadata: pi.Metadata,
	}, nil
}

func sessionFromStripe(cs *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:                cs.ID,
		URL:               cs.URL,
		Status:            string(cs.Status),
		PaymentStatus:     string(cs.PaymentStatus),
		AmountTotal:       cs.AmountTotal,
		Currency:          string(cs.Currency),
		ClientReferenceID: cs.ClientReferenceID,
		Metadata:          cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	return out
}

// gatewayError keeps the provider's message for logs; callers only see the
// generic external-failure text.
func gatewayError(msg string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		err = fmt.Errorf("stripe %d %s: %s", se.HTTPStatusCode, se.Type, se.Msg)
	}
	return apperror.External(msg, err)
}

// ----------------- Verify Signature -----------------

// VerifySignature checks a Stripe-Signature header of the form
// "t=<unix>,v1=<hex>[,v1=<hex>]" against the webhook secret.
func (s *stripeGateway) VerifySignature(payload []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	if s.webhookSecret == "" {
		return ErrInvalidSignature
	}

	err := webhook.ValidatePayloadWithTolerance(payload, header, s.webhookSecret, SignatureTolerance)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, webhook.ErrNotSigned):
		return ErrMissingSignature
	case errors.Is(err, webhook.ErrTooOld):
		return ErrStaleSignature
	default:
		return ErrInvalidSignature
	}
}
