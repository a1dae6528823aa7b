package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"
	"baklava-be/internal/order"
	"baklava-be/internal/payment"
	"baklava-be/internal/utils"

	"go.uber.org/zap"
)

// MaxBodyBytes caps a webhook payload.
const MaxBodyBytes = 1 << 20

const SignatureHeader = "Stripe-Signature"

type Handler struct {
	OrderSvc    order.Service
	Gateway     payment.Gateway
	PaymentRepo payment.Repository
	Counters    *metrics.Registry
}

func NewWebhookHandler(orderSvc order.Service, gateway payment.Gateway, paymentRepo payment.Repository, counters *metrics.Registry) *Handler {
	if counters == nil {
		counters = metrics.NewRegistry()
	}
	return &Handler{
		OrderSvc:    orderSvc,
		Gateway:     gateway,
		PaymentRepo: paymentRepo,
		Counters:    counters,
	}
}

// PaymentWebhookHandler verifies, records and applies a gateway event.
// Non-2xx answers make the gateway retry, so only failures worth retrying
// return 5xx.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "PaymentWebhook"))
	h.Counters.Inc(metrics.WebhookReceived)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large")
			utils.WriteJSONError(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn("failed to read webhook body", zap.Error(err))
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.Gateway.VerifySignature(body, r.Header.Get(SignatureHeader)); err != nil {
		h.Counters.Inc(metrics.WebhookRejected)
		log.Warn("webhook signature rejected", zap.Error(err))
		utils.WriteJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event payment.Event
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		log.Warn("invalid webhook payload", zap.Error(err))
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	var session *payment.Session
	externalID := ""
	if isCheckoutEvent(event.Type) {
		session = new(payment.Session)
		if err := json.Unmarshal(event.Data.Object, session); err != nil || session.ID == "" {
			log.Warn("invalid checkout session in webhook", zap.Error(err))
			utils.WriteJSONError(w, "invalid checkout session", http.StatusBadRequest)
			return
		}
		externalID = session.ID
	}

	webhookID, duplicate, err := h.PaymentRepo.SaveWebhookEvent(ctx, payment.WebhookEvent{
		Provider:       payment.ProviderStripe,
		EventID:        event.ID,
		EventType:      event.Type,
		ExternalID:     externalID,
		Payload:        body,
		SignatureValid: true,
	})
	if err != nil {
		utils.WriteJSONError(w, "failed to record event", http.StatusInternalServerError)
		return
	}
	if duplicate {
		h.Counters.Inc(metrics.WebhookDuplicate)
		utils.WriteJSON(w, http.StatusOK, map[string]string{"result": "duplicate"})
		return
	}

	if session == nil {
		h.markProcessed(r, webhookID)
		log.Debug("webhook event ignored")
		utils.WriteJSON(w, http.StatusOK, map[string]string{"result": "ignored"})
		return
	}

	if !session.Paid() {
		h.markProcessed(r, webhookID)
		log.Info("checkout completed without payment yet", zap.String("payment_status", session.PaymentStatus))
		utils.WriteJSON(w, http.StatusOK, map[string]string{"result": "awaiting_payment"})
		return
	}

	result, err := h.OrderSvc.ApplyPayment(ctx, session.Confirmation())
	if err != nil {
		if markErr := h.PaymentRepo.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("failed to record webhook failure", zap.Error(markErr))
		}
		if apperror.Is(err, apperror.KindValidation) {
			// Retrying cannot fix an event without a usable owner.
			log.Error("webhook cannot be applied", logger.Alert(), zap.Error(err))
			utils.WriteJSONFieldError(w, apperror.PublicMessage(err), apperror.FieldOf(err), http.StatusUnprocessableEntity)
			return
		}
		log.Error("failed to apply payment", zap.Error(err))
		utils.WriteJSONError(w, "failed to apply payment", http.StatusInternalServerError)
		return
	}

	h.markProcessed(r, webhookID)
	log.Info("webhook processed", zap.String("result", string(result)))
	utils.WriteJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

func (h *Handler) markProcessed(r *http.Request, webhookID int64) {
	if err := h.PaymentRepo.MarkWebhookProcessed(r.Context(), webhookID); err != nil {
		logger.FromCtx(r.Context()).Warn("webhook applied but not marked processed",
			zap.Int64("webhook_id", webhookID),
			zap.Error(err),
		)
	}
}

func isCheckoutEvent(eventType string) bool {
	return eventType == payment.EventCheckoutCompleted || eventType == payment.EventCheckoutAsyncSucceeded
}
