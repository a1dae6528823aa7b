package order

import (
	"context"
	"errors"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/cart"
	"baklava-be/internal/email"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"
	"baklava-be/internal/money"
	"baklava-be/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxNotesLength = 1000

type Service interface {
	Create(ctx context.Context, ac auth.Context, in CreateInput) (*Order, error)
	Get(ctx context.Context, ac auth.Context, id string) (*Order, error)
	List(ctx context.Context, ac auth.Context, filter ListFilter) ([]*Order, error)
	Cancel(ctx context.Context, ac auth.Context, id string) (CancelResult, error)

	UpdateStatus(ctx context.Context, ac auth.Context, id string, in StatusUpdate) (*Order, error)
	Events(ctx context.Context, ac auth.Context, id string) ([]StatusEvent, error)

	// AttachSession records a freshly created gateway session on an unpaid
	// order and moves it to pending_payment.
	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error
	// ApplyPayment marks the order behind a verified payment as paid. It is
	// safe to call any number of times for the same payment.
	ApplyPayment(ctx context.Context, pc PaymentConfirmation) (ApplyResult, error)
}

type Options struct {
	CancelMode CancelMode
	Mailer     email.Sender
	Counters   *metrics.Registry
}

type service struct {
	repo       Repository
	pricer     cart.Pricer
	mailer     email.Sender
	counters   *metrics.Registry
	cancelMode CancelMode
}

func NewService(repo Repository, pricer cart.Pricer, opts Options) Service {
	if opts.Counters == nil {
		opts.Counters = metrics.NewRegistry()
	}
	if opts.Mailer == nil {
		opts.Mailer = email.NoopSender{}
	}
	if opts.CancelMode != CancelHard {
		opts.CancelMode = CancelSoft
	}
	return &service{
		repo:       repo,
		pricer:     pricer,
		mailer:     opts.Mailer,
		counters:   opts.Counters,
		cancelMode: opts.CancelMode,
	}
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

func (s *service) Create(ctx context.Context, ac auth.Context, in CreateInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "Create"),
	)

	if err := auth.RequireApproved(ac); err != nil {
		return nil, err
	}
	if err := in.Shipping.Validate(); err != nil {
		log.Warn("invalid shipping address", zap.Error(err))
		return nil, err
	}
	if !in.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLength {
		return nil, apperror.Validation("notes", "notes must be at most 1000 characters")
	}

	quote, err := s.pricer.Price(ctx, in.Items, in.Lang)
	if err != nil {
		log.Warn("failed to price order", zap.Error(err))
		return nil, err
	}

	o := &Order{
		ReferenceNumber: utils.GenerateReferenceNumber(),
		UserID:          ac.UserID,
		Subtotal:        quote.Subtotal,
		TaxAmount:       quote.Tax,
		TaxRate:         quote.TaxRate,
		TotalAmount:     quote.Total,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		PaymentMethod:   in.PaymentMethod,
		Shipping:        in.Shipping,
		Items:           make([]Item, 0, len(quote.Lines)),
	}
	if notes != "" {
		o.Notes = &notes
	}
	for _, l := range quote.Lines {
		o.Items = append(o.Items, Item{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
	}

	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return nil, err
	}

	if ac.Email != "" {
		msg := email.OrderPlaced(ac.Email, created.ReferenceNumber, created.TotalAmount.StringFixed(2), created.PaymentMethod == MethodCash)
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, email.ErrNotConfigured) {
			s.counters.Inc(metrics.EmailsFailed)
			log.Warn("order confirmation email failed", zap.Error(err))
		}
	}

	log.Info("order created",
		zap.String("order_id", created.ID.String()),
		zap.String("reference_number", created.ReferenceNumber),
		zap.Int64("total_cents", quote.Totals.TotalCents),
	)
	return created, nil
}

func (s *service) Get(ctx context.Context, ac auth.Context, rawID string) (*Order, error) {
	if err := auth.RequireUser(ac); err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ac.IsAdmin() && !o.Owned(ac.UserID) {
		logger.FromCtx(ctx).Info("order read denied",
			zap.String("service", "Order"),
			zap.String("order_id", id.String()),
		)
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *service) List(ctx context.Context, ac auth.Context, filter ListFilter) ([]*Order, error) {
	if err := auth.RequireUser(ac); err != nil {
		return nil, err
	}
	if !ac.IsAdmin() {
		uid := ac.UserID
		filter.UserID = &uid
	}
	if filter.Status != nil {
		if err := ValidateStatus(*filter.Status); err != nil {
			return nil, err
		}
	}
	if filter.PaymentStatus != nil {
		if err := ValidatePaymentStatus(*filter.PaymentStatus); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *service) Cancel(ctx context.Context, ac auth.Context, rawID string) (CancelResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "Cancel"),
		zap.String("order_id", rawID),
		zap.String("mode", string(s.cancelMode)),
	)

	if err := auth.RequireUser(ac); err != nil {
		return "", err
	}
	id, err := parseID(rawID)
	if err != nil {
		return "", err
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !o.Owned(ac.UserID) {
		return "", ErrOrderNotFound
	}

	if o.PaymentStatus != PaymentUnpaid || o.Status == StatusCancelled {
		log.Info("cancel skipped", zap.String("payment_status", string(o.PaymentStatus)))
		return CancelSkipped, nil
	}
	if !CanTransition(ActorCustomer, o.Status, StatusCancelled) {
		return "", ErrNotCancellable
	}

	if s.cancelMode == CancelHard {
		deleted, err := s.repo.DeleteUnpaid(ctx, id)
		if err != nil {
			return "", err
		}
		if !deleted {
			log.Info("order was paid concurrently, delete skipped")
			return CancelSkipped, nil
		}
		log.Info("order deleted")
		return CancelDeleted, nil
	}

	cancelled, err := s.repo.CancelUnpaid(ctx, id)
	if err != nil {
		return "", err
	}
	if !cancelled {
		log.Info("order changed concurrently, cancel skipped")
		return CancelSkipped, nil
	}
	log.Info("order cancelled")
	return CancelCancelled, nil
}

func (s *service) UpdateStatus(ctx context.Context, ac auth.Context, rawID string, in StatusUpdate) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "UpdateStatus"),
		zap.String("order_id", rawID),
		zap.Uint("admin_id", ac.UserID),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	if in.Status == nil && in.PaymentStatus == nil {
		return nil, apperror.Validation("status", "status or payment_status is required")
	}
	if in.Status != nil {
		if err := ValidateStatus(*in.Status); err != nil {
			return nil, err
		}
	}
	if in.PaymentStatus != nil {
		if err := ValidatePaymentStatus(*in.PaymentStatus); err != nil {
			return nil, err
		}
	}
	reason := strings.TrimSpace(in.Reason)
	if in.Force && reason == "" {
		return nil, apperror.Validation("reason", "reason is required when forcing a transition")
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	change := StatusChange{
		OrderID:         o.ID,
		ActorID:         ac.UserID,
		Actor:           ActorAdmin,
		FromStatus:      o.Status,
		ToStatus:        o.Status,
		FromPayment:     o.PaymentStatus,
		ToPayment:       o.PaymentStatus,
		Forced:          in.Force,
		Reason:          reason,
		ExpectedVersion: o.Version,
	}
	if in.Status != nil {
		change.ToStatus = *in.Status
	}
	if in.PaymentStatus != nil {
		change.ToPayment = *in.PaymentStatus
	}
	if in.ExpectedVersion != nil {
		change.ExpectedVersion = *in.ExpectedVersion
	}

	if change.ToStatus == change.FromStatus && change.ToPayment == change.FromPayment {
		log.Debug("no status change requested")
		return o, nil
	}

	if !in.Force {
		if !CanTransition(ActorAdmin, change.FromStatus, change.ToStatus) ||
			!CanTransitionPayment(ActorAdmin, change.FromPayment, change.ToPayment) {
			log.Warn("transition rejected",
				zap.String("from", string(change.FromStatus)),
				zap.String("to", string(change.ToStatus)),
				zap.String("payment_from", string(change.FromPayment)),
				zap.String("payment_to", string(change.ToPayment)),
			)
			return nil, ErrInvalidTransition
		}
	} else {
		s.counters.Inc(metrics.AdminOverrides)
		log.Warn("forced status override",
			zap.String("from", string(change.FromStatus)),
			zap.String("to", string(change.ToStatus)),
			zap.String("reason", reason),
		)
	}

	if _, err := s.repo.UpdateStatus(ctx, change); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Events(ctx context.Context, ac auth.Context, rawID string) ([]StatusEvent, error) {
	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

func (s *service) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	attached, err := s.repo.AttachSession(ctx, id, sessionID)
	if err != nil {
		return err
	}
	if !attached {
		return ErrSessionNotAttached
	}
	return nil
}

func (s *service) ApplyPayment(ctx context.Context, pc PaymentConfirmation) (ApplyResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "ApplyPayment"),
		zap.String("session_id", pc.SessionID),
		zap.Uint("owner_id", pc.UserID),
		zap.Int64("amount_cents", pc.AmountTotalCents),
	)

	o, err := s.findPaymentTarget(ctx, pc)
	if err != nil {
		return "", err
	}
	if o == nil {
		if pc.UserID == 0 {
			s.counters.Inc(metrics.WebhookNoOwner)
			log.Error("payment confirmation has no order and no owning user", logger.Alert())
			return "", ErrMissingOwner
		}
		return s.recoverOrder(ctx, log, pc)
	}

	log = log.With(zap.String("order_id", o.ID.String()))
	switch {
	case pc.UserID == 0:
		log.Warn("payment carries no owner, using the order's", zap.Uint("order_owner_id", o.UserID))
		pc.UserID = o.UserID
	case o.UserID != pc.UserID:
		log.Error("payment owner does not match order owner", logger.Alert(), zap.Uint("order_owner_id", o.UserID))
		return "", ErrOwnerMismatch
	}

	if o.PaymentStatus != PaymentUnpaid {
		if o.SessionID != nil && *o.SessionID == pc.SessionID {
			log.Info("payment already applied")
			return ApplyAlreadyApplied, nil
		}
		s.counters.Inc(metrics.DoublePayment)
		log.Error("second payment captured for an already paid order", logger.Alert(),
			zap.Stringp("paid_session_id", o.SessionID),
		)
		return ApplyAlreadyApplied, nil
	}

	if pc.AmountTotalCents != o.TotalCents() {
		s.counters.Inc(metrics.AmountMismatch)
		log.Error("captured amount differs from order total", logger.Alert(),
			zap.Int64("order_total_cents", o.TotalCents()),
		)
	}
	if o.SessionID != nil && *o.SessionID != pc.SessionID {
		log.Warn("payment completed on a superseded session", zap.Stringp("current_session_id", o.SessionID))
	}

	if !CanTransition(ActorWebhook, o.Status, StatusProcessing) {
		log.Warn("payment does not advance order status", zap.String("status", string(o.Status)))
	}

	res, err := s.repo.MarkPaid(ctx, o.ID, pc.SessionID, pc.PaymentIntentID)
	if err != nil {
		return "", err
	}
	if !res.Updated {
		log.Info("payment applied concurrently")
		return ApplyAlreadyApplied, nil
	}
	if res.StatusNow == StatusCancelled {
		log.Error("payment captured for a cancelled order, refund or reinstate manually", logger.Alert())
	}

	s.counters.Inc(metrics.PaymentsApplied)
	log.Info("payment applied", zap.String("status", string(res.StatusNow)))
	return ApplyApplied, nil
}

func (s *service) findPaymentTarget(ctx context.Context, pc PaymentConfirmation) (*Order, error) {
	if pc.OrderID != nil {
		o, err := s.repo.GetByID(ctx, *pc.OrderID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
	}
	if pc.SessionID == "" {
		return nil, nil
	}
	o, err := s.repo.GetBySessionID(ctx, pc.SessionID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// recoverOrder stores a paid order for a payment whose order row is gone,
// so the capture is never lost. Line items are not known at this point.
func (s *service) recoverOrder(ctx context.Context, log *zap.Logger, pc PaymentConfirmation) (ApplyResult, error) {
	if pc.SessionID == "" {
		log.Error("payment confirmation has neither order nor session", logger.Alert())
		return "", apperror.Validation("session_id", "payment has no session id")
	}

	subtotal, tax := pc.SubtotalCents, pc.TaxCents
	if subtotal+tax != pc.AmountTotalCents {
		subtotal, tax = pc.AmountTotalCents, 0
	}
	note := "recovered from payment confirmation; line items unavailable"
	sessionID := pc.SessionID

	o := &Order{
		ReferenceNumber: utils.GenerateReferenceNumber(),
		UserID:          pc.UserID,
		Subtotal:        money.FromCents(subtotal),
		TaxAmount:       money.FromCents(tax),
		TaxRate:         decimal.New(pc.TaxRateBP, -4),
		TotalAmount:     money.FromCents(pc.AmountTotalCents),
		Status:          StatusProcessing,
		PaymentStatus:   PaymentPaid,
		PaymentMethod:   MethodCard,
		Notes:           &note,
		SessionID:       &sessionID,
	}
	if pc.Shipping != nil {
		o.Shipping = *pc.Shipping
	}
	if pc.PaymentIntentID != "" {
		pi := pc.PaymentIntentID
		o.PaymentIntentID = &pi
	}

	result, id, err := s.repo.UpsertPaidBySession(ctx, o)
	if err != nil {
		return "", err
	}
	switch result {
	case ApplyCreated:
		s.counters.Inc(metrics.PaymentsApplied)
		log.Error("order row missing for payment, recovered order created", logger.Alert(),
			zap.String("order_id", id.String()),
		)
	case ApplyApplied:
		s.counters.Inc(metrics.PaymentsApplied)
		log.Info("payment applied by session", zap.String("order_id", id.String()))
	default:
		log.Info("payment already applied")
	}
	return result, nil
}
