package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"baklava-be/internal/apperror"
	"baklava-be/internal/metrics"
	"baklava-be/internal/order"
	"baklava-be/internal/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderService struct {
	order.Service
	mock.Mock
}

func (m *MockOrderService) ApplyPayment(ctx context.Context, pc order.PaymentConfirmation) (order.ApplyResult, error) {
	args := m.Called(ctx, pc)
	return args.Get(0).(order.ApplyResult), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) RetrieveCheckoutSession(ctx context.Context, id string) (*payment.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) RetrievePaymentIntent(ctx context.Context, id string) (*payment.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PaymentIntent), args.Error(1)
}

func (m *MockGateway) VerifySignature(payload []byte, header string) error {
	return m.Called(payload, header).Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) SaveWebhookEvent(ctx context.Context, ev payment.WebhookEvent) (int64, bool, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) MarkWebhookProcessed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPaymentRepository) MarkWebhookFailed(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

type harness struct {
	orders   *MockOrderService
	gateway  *MockGateway
	repo     *MockPaymentRepository
	counters *metrics.Registry
	h        *Handler
}

func newHarness() *harness {
	hs := &harness{
		orders:   new(MockOrderService),
		gateway:  new(MockGateway),
		repo:     new(MockPaymentRepository),
		counters: metrics.NewRegistry(),
	}
	hs.h = NewWebhookHandler(hs.orders, hs.gateway, hs.repo, hs.counters)
	return hs
}

func completedEvent(t *testing.T, eventID string, orderID uuid.UUID, userID string, paymentStatus string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   eventID,
		"type": payment.EventCheckoutCompleted,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_1",
				"status":         "complete",
				"payment_status": paymentStatus,
				"payment_intent": "pi_1",
				"amount_total":   15945,
				"metadata": map[string]string{
					"order_id":       orderID.String(),
					"user_id":        userID,
					"subtotal_cents": "14495",
					"tax_cents":      "1450",
					"tax_rate_bp":    "1000",
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func post(hs *harness, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "t=1,v1=ab")
	w := httptest.NewRecorder()
	hs.h.PaymentWebhookHandler(w, req)
	return w
}

func TestHandler_PaymentWebhookHandler(t *testing.T) {
	orderID := uuid.New()

	t.Run("Success_Paid", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_1", orderID, "7", "paid")

		hs.gateway.On("VerifySignature", body, "t=1,v1=ab").Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.MatchedBy(func(ev payment.WebhookEvent) bool {
			return ev.EventID == "evt_1" && ev.ExternalID == "cs_test_1" && ev.Provider == payment.ProviderStripe
		})).Return(int64(1), false, nil)
		hs.orders.On("ApplyPayment", mock.Anything, mock.MatchedBy(func(pc order.PaymentConfirmation) bool {
			return pc.SessionID == "cs_test_1" && pc.UserID == 7 && *pc.OrderID == orderID &&
				pc.AmountTotalCents == 15945 && pc.TaxCents == 1450
		})).Return(order.ApplyApplied, nil)
		hs.repo.On("MarkWebhookProcessed", mock.Anything, int64(1)).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"applied"`)
		hs.orders.AssertExpectations(t)
		hs.repo.AssertExpectations(t)
		assert.Equal(t, uint64(1), hs.counters.Counter(metrics.WebhookReceived).Load())
	})

	t.Run("InvalidSignature", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_1", orderID, "7", "paid")
		hs.gateway.On("VerifySignature", body, "t=1,v1=ab").Return(payment.ErrInvalidSignature)

		w := post(hs, body)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		hs.repo.AssertNotCalled(t, "SaveWebhookEvent", mock.Anything, mock.Anything)
		hs.orders.AssertNotCalled(t, "ApplyPayment", mock.Anything, mock.Anything)
		assert.Equal(t, uint64(1), hs.counters.Counter(metrics.WebhookRejected).Load())
	})

	t.Run("DuplicateDelivery", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_1", orderID, "7", "paid")
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.Anything).Return(int64(1), true, nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusOK, w.Code)
		hs.orders.AssertNotCalled(t, "ApplyPayment", mock.Anything, mock.Anything)
		assert.Equal(t, uint64(1), hs.counters.Counter(metrics.WebhookDuplicate).Load())
	})

	t.Run("SecondApplyIsNoop", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_2", orderID, "7", "paid")
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.Anything).Return(int64(2), false, nil)
		hs.orders.On("ApplyPayment", mock.Anything, mock.Anything).Return(order.ApplyAlreadyApplied, nil)
		hs.repo.On("MarkWebhookProcessed", mock.Anything, int64(2)).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "already_applied")
	})

	t.Run("MissingOwner", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_3", orderID, "", "paid")
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.Anything).Return(int64(3), false, nil)
		hs.orders.On("ApplyPayment", mock.Anything, mock.MatchedBy(func(pc order.PaymentConfirmation) bool {
			return pc.UserID == 0
		})).Return(order.ApplyResult(""), order.ErrMissingOwner)
		hs.repo.On("MarkWebhookFailed", mock.Anything, int64(3), mock.Anything).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "user_id")
		hs.repo.AssertNotCalled(t, "MarkWebhookProcessed", mock.Anything, mock.Anything)
	})

	t.Run("StorageFailureAsksForRetry", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_4", orderID, "7", "paid")
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.Anything).Return(int64(4), false, nil)
		hs.orders.On("ApplyPayment", mock.Anything, mock.Anything).
			Return(order.ApplyResult(""), apperror.Storage("failed to mark order paid", errors.New("db down")))
		hs.repo.On("MarkWebhookFailed", mock.Anything, int64(4), mock.Anything).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})

	t.Run("SaveFailure", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_5", orderID, "7", "paid")
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.Anything).
			Return(int64(0), false, apperror.Storage("failed to save webhook event", errors.New("db down")))

		w := post(hs, body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		hs.orders.AssertNotCalled(t, "ApplyPayment", mock.Anything, mock.Anything)
	})

	t.Run("UnpaidSessionIsRecordedOnly", func(t *testing.T) {
		hs := newHarness()
		body := completedEvent(t, "evt_6", orderID, "7", "unpaid")
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.Anything).Return(int64(6), false, nil)
		hs.repo.On("MarkWebhookProcessed", mock.Anything, int64(6)).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusOK, w.Code)
		hs.orders.AssertNotCalled(t, "ApplyPayment", mock.Anything, mock.Anything)
	})

	t.Run("OtherEventIgnored", func(t *testing.T) {
		hs := newHarness()
		body := []byte(`{"id":"evt_7","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)
		hs.repo.On("SaveWebhookEvent", mock.Anything, mock.MatchedBy(func(ev payment.WebhookEvent) bool {
			return ev.EventType == "charge.refunded" && ev.ExternalID == ""
		})).Return(int64(7), false, nil)
		hs.repo.On("MarkWebhookProcessed", mock.Anything, int64(7)).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ignored")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		hs := newHarness()
		body := []byte(`{not json`)
		hs.gateway.On("VerifySignature", body, mock.Anything).Return(nil)

		w := post(hs, body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		hs := newHarness()
		body := []byte(strings.Repeat("a", MaxBodyBytes+1))

		w := post(hs, body)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		hs.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything)
	})
}
