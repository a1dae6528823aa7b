package checkout

import (
	"context"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/cart"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"
	"baklava-be/internal/order"
	"baklava-be/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// CreateSession opens a card payment session for an unpaid order.
	CreateSession(ctx context.Context, ac auth.Context, orderID string, items []cart.Item) (*SessionResult, error)
	// Confirm asks the gateway directly whether a session was paid and, if
	// so, applies the payment the same way the webhook does.
	Confirm(ctx context.Context, ac auth.Context, orderID, sessionID string) (*Confirmation, error)
}

type Options struct {
	BaseURL  string
	Currency string
	Counters *metrics.Registry
}

type service struct {
	orders   order.Service
	pricer   cart.Pricer
	gateway  payment.Gateway
	baseURL  string
	currency string
	counters *metrics.Registry
}

func NewService(orders order.Service, pricer cart.Pricer, gateway payment.Gateway, opts Options) Service {
	if opts.Counters == nil {
		opts.Counters = metrics.NewRegistry()
	}
	if opts.Currency == "" {
		opts.Currency = "eur"
	}
	return &service{
		orders:   orders,
		pricer:   pricer,
		gateway:  gateway,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		currency: strings.ToLower(opts.Currency),
		counters: opts.Counters,
	}
}

func (s *service) loadOwned(ctx context.Context, ac auth.Context, orderID string) (*order.Order, error) {
	o, err := s.orders.Get(ctx, ac, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Owned(ac.UserID) {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (s *service) CreateSession(ctx context.Context, ac auth.Context, orderID string, items []cart.Item) (*SessionResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Checkout"),
		zap.String("method", "CreateSession"),
		zap.String("order_id", orderID),
	)

	if err := auth.RequireApproved(ac); err != nil {
		return nil, err
	}
	o, err := s.loadOwned(ctx, ac, orderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus != order.PaymentUnpaid {
		log.Info("session refused, order already paid")
		return nil, ErrAlreadyPaid
	}
	if o.PaymentMethod != order.MethodCard {
		return nil, ErrNotCardOrder
	}
	if !order.CanTransition(order.ActorCustomer, o.Status, order.StatusPendingPayment) {
		return nil, ErrNotPayable
	}

	stored := itemsOf(o)
	if len(items) > 0 && !sameItems(items, stored) {
		log.Warn("cart does not match stored order")
		return nil, ErrItemsMismatch
	}

	quote, err := s.pricer.Price(ctx, stored, "")
	if err != nil {
		log.Warn("failed to reprice order", zap.Error(err))
		return nil, err
	}
	if !o.MatchesQuote(quote) {
		log.Warn("catalog prices changed since order creation",
			zap.String("stored_total", o.TotalAmount.StringFixed(2)),
			zap.Int64("quoted_total_cents", quote.Totals.TotalCents),
		)
		return nil, ErrPricesChanged
	}

	id := o.ID.String()
	session, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		OrderID:         o.ID,
		ReferenceNumber: o.ReferenceNumber,
		UserID:          o.UserID,
		CustomerEmail:   ac.Email,
		Currency:        s.currency,
		Totals:          quote.Totals,
		Shipping:        o.Shipping,
		SuccessURL:      s.baseURL + "/orders/" + id + "/confirmation?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       s.baseURL + "/orders/" + id,
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.AttachSession(ctx, o.ID, session.ID); err != nil {
		s.counters.Inc(metrics.CorrelationLoss)
		log.Error("payment session created but not recorded on order",
			logger.Alert(),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return nil, apperror.Wrap(apperror.KindCorrelationLoss, "payment session could not be recorded", err)
	}

	log.Info("checkout session ready", zap.String("session_id", session.ID))
	return &SessionResult{URL: session.URL, SessionID: session.ID}, nil
}

func (s *service) Confirm(ctx context.Context, ac auth.Context, orderID, sessionID string) (*Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Checkout"),
		zap.String("method", "Confirm"),
		zap.String("order_id", orderID),
		zap.String("session_id", sessionID),
	)

	if err := auth.RequireUser(ac); err != nil {
		return nil, err
	}
	o, err := s.loadOwned(ctx, ac, orderID)
	if err != nil {
		return nil, err
	}

	current := confirmationOf(o)
	if current.Settled {
		return current, nil
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	session, err := s.gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	pc := session.Confirmation()
	if pc.OrderID == nil || *pc.OrderID != o.ID {
		log.Warn("session belongs to another order")
		return nil, ErrSessionMismatch
	}

	if !session.Paid() {
		if session.PaymentIntentID == "" {
			log.Debug("session not paid yet", zap.String("payment_status", session.PaymentStatus))
			return current, nil
		}
		pi, err := s.gateway.RetrievePaymentIntent(ctx, session.PaymentIntentID)
		if err != nil {
			log.Warn("payment intent lookup failed", zap.Error(err))
			return current, nil
		}
		if !pi.Succeeded() {
			return current, nil
		}
		fromIntent := pi.Confirmation(session.ID)
		if fromIntent.UserID != 0 {
			pc.UserID = fromIntent.UserID
		}
		pc.PaymentIntentID = pi.ID
		pc.AmountTotalCents = pi.Amount
	}
	if pc.UserID == 0 {
		pc.UserID = o.UserID
	}

	result, err := s.orders.ApplyPayment(ctx, pc)
	if err != nil {
		return nil, err
	}
	log.Info("payment confirmed on redirect", zap.String("result", string(result)))

	updated, err := s.orders.Get(ctx, ac, orderID)
	if err != nil {
		return nil, err
	}
	return confirmationOf(updated), nil
}

func itemsOf(o *order.Order) []cart.Item {
	items := make([]cart.Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, cart.Item{ProductID: it.ProductID.String(), Quantity: it.Quantity})
	}
	return items
}

// sameItems compares carts by total quantity per product.
func sameItems(a, b []cart.Item) bool {
	count := func(items []cart.Item) (map[uuid.UUID]int, bool) {
		out := make(map[uuid.UUID]int, len(items))
		for _, it := range items {
			id, err := uuid.Parse(strings.TrimSpace(it.ProductID))
			if err != nil {
				return nil, false
			}
			out[id] += it.Quantity
		}
		return out, true
	}
	ca, ok := count(a)
	if !ok {
		return false
	}
	cb, _ := count(b)
	if len(ca) != len(cb) {
		return false
	}
	for id, q := range ca {
		if cb[id] != q {
			return false
		}
	}
	return true
}
