package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"baklava-be/internal/cart"
	"baklava-be/internal/order"
	"baklava-be/internal/poller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(fn func(req *http.Request) (*http.Response, error)) *Client {
	c := New(Options{
		BaseURL: "https://api.shop.example/",
		Token:   "tok",
		Poll:    poller.Options{Attempts: 3, Interval: time.Millisecond},
	})
	c.httpClient = &http.Client{Transport: &MockRoundTripper{RoundTripFunc: fn}}
	return c
}

const orderID = "5f1c2b8e-8d3a-4a57-9c77-0f1f8e0b2a11"

func TestClient_Confirmation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, "/api/orders/"+orderID+"/confirmation", req.URL.Path)
			assert.Equal(t, "cs_1", req.URL.Query().Get("session_id"))
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			return jsonResponse(200, `{"order_id":"`+orderID+`","status":"processing","payment_status":"paid","settled":true}`), nil
		})

		conf, err := c.Confirmation(context.Background(), orderID, "cs_1")
		require.NoError(t, err)
		assert.True(t, conf.Settled)
		assert.Equal(t, order.PaymentPaid, conf.PaymentStatus)
	})

	t.Run("APIError", func(t *testing.T) {
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(404, `{"error":"order not found"}`), nil
		})

		_, err := c.Confirmation(context.Background(), orderID, "cs_1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 404, apiErr.StatusCode)
		assert.Equal(t, "order not found", apiErr.Message)
	})

	t.Run("NetworkError", func(t *testing.T) {
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := c.Confirmation(context.Background(), orderID, "")
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestClient_AwaitPayment(t *testing.T) {
	t.Run("SettlesOnSecondPoll", func(t *testing.T) {
		calls := 0
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 2 {
				return jsonResponse(200, `{"status":"processing","payment_status":"paid","settled":true}`), nil
			}
			return jsonResponse(200, `{"status":"pending_payment","payment_status":"unpaid","settled":false}`), nil
		})

		conf, err := c.AwaitPayment(context.Background(), orderID, "cs_1")
		require.NoError(t, err)
		assert.Equal(t, order.StatusProcessing, conf.Status)
		assert.Equal(t, 2, calls)
	})

	t.Run("StillProcessing", func(t *testing.T) {
		calls := 0
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(200, `{"status":"pending_payment","payment_status":"unpaid","settled":false}`), nil
		})

		conf, err := c.AwaitPayment(context.Background(), orderID, "cs_1")
		assert.ErrorIs(t, err, poller.ErrStillProcessing)
		require.NotNil(t, conf)
		assert.False(t, conf.Settled)
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsOnError", func(t *testing.T) {
		calls := 0
		c := newTestClient(func(req *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(401, `{"error":"login required"}`), nil
		})

		_, err := c.AwaitPayment(context.Background(), orderID, "cs_1")
		var apiErr *APIError
		assert.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 1, calls)
	})
}

func TestClient_CheckoutSession(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		b, _ := io.ReadAll(req.Body)
		assert.Contains(t, string(b), `"quantity":5`)
		return jsonResponse(200, `{"url":"https://checkout.stripe.com/c/pay/cs_1","session_id":"cs_1"}`), nil
	})

	res, err := c.CheckoutSession(context.Background(), orderID,
		[]cart.Item{{ProductID: "0b6a4f0e-3a6f-4e55-8a0a-6f3c5d1e2b90", Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
}
