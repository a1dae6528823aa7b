package email

import (
	"context"
	"errors"
	"net/http"
	"time"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by NoopSender: nothing was delivered.
var ErrNotConfigured = errors.New("email provider not configured")

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type resendSender struct {
	from   string
	client *resend.Client
}

// NewSender returns a Resend-backed sender, or a NoopSender when no API key
// is configured.
func NewSender(apiKey, from string) Sender {
	if apiKey == "" {
		logger.L().Warn("RESEND_API_KEY is empty, emails will only be logged")
		return NoopSender{}
	}
	return newResendSender(apiKey, from, &http.Client{Timeout: 10 * time.Second})
}

func newResendSender(apiKey, from string, httpClient *http.Client) *resendSender {
	return &resendSender{
		from:   from,
		client: resend.NewCustomClient(httpClient, apiKey),
	}
}

func (s *resendSender) Send(ctx context.Context, msg Message) error {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Email"),
		zap.String("method", "Send"),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)

	if msg.To == "" {
		return apperror.Validation("to", "recipient is required")
	}

	timer := metrics.StartTimer()
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		log.Error("email provider rejected message", zap.Error(err), zap.Duration("latency", timer.Duration()))
		return apperror.External("failed to send email", err)
	}

	log.Info("email sent", zap.String("email_id", resp.Id), zap.Duration("latency", timer.Duration()))
	return nil
}

// NoopSender logs instead of sending. Used in development.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg Message) error {
	logger.FromCtx(ctx).Info("email not sent (no provider configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return ErrNotConfigured
}
