// Package client is a small Go client for the storefront API, used by
// integration consumers to open card payments and wait for their outcome.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"baklava-be/internal/cart"
	"baklava-be/internal/checkout"
	"baklava-be/internal/logger"
	"baklava-be/internal/poller"

	"go.uber.org/zap"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Field      string `json:"field"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api %d: %s (%s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	poll       poller.Options
}

type Options struct {
	BaseURL string
	// Token is the session token sent as a bearer credential.
	Token string
	Poll  poller.Options
}

func New(opts Options) *Client {
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		poll: opts.Poll,
	}
}

// CheckoutSession opens a card payment session for an order.
func (c *Client) CheckoutSession(ctx context.Context, orderID string, items []cart.Item) (*checkout.SessionResult, error) {
	body := struct {
		Items []cart.Item `json:"items,omitempty"`
	}{Items: items}

	var out checkout.SessionResult
	path := "/api/orders/" + url.PathEscape(orderID) + "/checkout-session"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Confirmation asks the API once for the payment state of an order.
func (c *Client) Confirmation(ctx context.Context, orderID, sessionID string) (*checkout.Confirmation, error) {
	path := "/api/orders/" + url.PathEscape(orderID) + "/confirmation"
	if sessionID != "" {
		path += "?session_id=" + url.QueryEscape(sessionID)
	}

	var out checkout.Confirmation
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AwaitPayment polls Confirmation until the payment settles. When the
// attempt budget runs out it returns the last state with
// poller.ErrStillProcessing.
func (c *Client) AwaitPayment(ctx context.Context, orderID, sessionID string) (*checkout.Confirmation, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("client", "Storefront"),
		zap.String("method", "AwaitPayment"),
		zap.String("order_id", orderID),
	)

	conf, err := poller.Await(ctx, func(ctx context.Context) (*checkout.Confirmation, bool, error) {
		conf, err := c.Confirmation(ctx, orderID, sessionID)
		if err != nil {
			return nil, false, err
		}
		return conf, conf.Settled, nil
	}, c.poll)
	if err != nil {
		log.Info("payment not settled", zap.Error(err))
		return conf, err
	}

	log.Info("payment settled", zap.String("payment_status", string(conf.PaymentStatus)))
	return conf, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = strings.NewReader(string(b))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if reqID := logger.RequestIDFrom(ctx); reqID != "" {
		req.Header.Set(logger.RequestIDHeader, reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
