package payment

import "context"

// Gateway is the card payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*Session, error)
	RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
	// VerifySignature checks a webhook payload against its signature header.
	VerifySignature(payload []byte, header string) error
}
