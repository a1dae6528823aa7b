package payment

import (
	"context"
	"database/sql"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// SaveWebhookEvent records a delivery. A repeated (provider, event id)
	// pair is only reported as a duplicate once an earlier delivery has been
	// processed, so a retry after a failure is handled again.
	SaveWebhookEvent(ctx context.Context, ev WebhookEvent) (webhookID int64, isDuplicate bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaveWebhookEvent(ctx context.Context, ev WebhookEvent) (int64, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Payment"),
		zap.String("method", "SaveWebhookEvent"),
		zap.String("event_id", ev.EventID),
		zap.String("event_type", ev.EventType),
	)

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		external_id,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET attempts = payment_webhooks.attempts + 1
	RETURNING id, processed_at IS NOT NULL;
	`

	var (
		id        int64
		processed bool
	)
	err := r.db.QueryRowContext(
		ctx,
		q,
		ev.Provider,
		ev.EventID,
		ev.EventType,
		ev.ExternalID,
		ev.SignatureValid,
		[]byte(ev.Payload),
	).Scan(&id, &processed)
	if err != nil {
		log.Error("failed to save webhook event", zap.Error(err))
		return 0, false, apperror.Storage("failed to save webhook event", err)
	}

	if processed {
		log.Info("duplicate webhook event", zap.Int64("webhook_id", id))
	}
	return id, processed, nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`

	if _, err := r.db.ExecContext(ctx, q, webhookID); err != nil {
		logger.FromCtx(ctx).Error("failed to mark webhook processed",
			zap.String("repo", "Payment"),
			zap.Int64("webhook_id", webhookID),
			zap.Error(err),
		)
		return apperror.Storage("failed to mark webhook processed", err)
	}
	return nil
}

func (r *repository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	if _, err := r.db.ExecContext(ctx, q, webhookID, reason); err != nil {
		logger.FromCtx(ctx).Error("failed to mark webhook failed",
			zap.String("repo", "Payment"),
			zap.Int64("webhook_id", webhookID),
			zap.Error(err),
		)
		return apperror.Storage("failed to mark webhook failed", err)
	}
	return nil
}
