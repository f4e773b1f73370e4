package repository

import (
	"context"
	"time"

	"github.com/smsflow/smsflow/model"
)

// WebhookEvent ...
type WebhookEvent interface {
	GetWebhookEvent(ctx context.Context, id int64) (model.WebhookEvent, error)
	ListUnprocessedEvents(ctx context.Context, before time.Time, limit int64) ([]model.WebhookEvent, error)

	InsertWebhookEvent(ctx context.Context, event model.WebhookEvent) (int64, error)
	MarkEventProcessed(ctx context.Context, id int64, at time.Time) error
	MarkEventFailed(ctx context.Context, id int64, errMsg string) error
}

type webhookEventImpl struct {
}

// NewWebhookEvent ...
func NewWebhookEvent() WebhookEvent {
	return &webhookEventImpl{}
}

const webhookEventColumns = `
	id, external_event_id, event_type, payload, processed, error_message, received_at, processed_at
`

// GetWebhookEvent ...
func (w *webhookEventImpl) GetWebhookEvent(ctx context.Context, id int64) (model.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_event WHERE id = ?`
	var result model.WebhookEvent
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// ListUnprocessedEvents ...
func (w *webhookEventImpl) ListUnprocessedEvents(
	ctx context.Context, before time.Time, limit int64,
) ([]model.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_event
WHERE processed = FALSE AND received_at < ?
ORDER BY id LIMIT ?`
	var result []model.WebhookEvent
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, before, limit)
	return result, err
}

// InsertWebhookEvent appends to the event log
func (w *webhookEventImpl) InsertWebhookEvent(ctx context.Context, event model.WebhookEvent) (int64, error) {
	query := `
INSERT INTO webhook_event (external_event_id, event_type, payload, processed, error_message, received_at)
VALUES (:external_event_id, :event_type, :payload, :processed, :error_message, :received_at)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, event)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// MarkEventProcessed ...
func (w *webhookEventImpl) MarkEventProcessed(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE webhook_event SET processed = TRUE, processed_at = ?, error_message = NULL WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, at, id)
	return err
}

// MarkEventFailed ...
func (w *webhookEventImpl) MarkEventFailed(ctx context.Context, id int64, errMsg string) error {
	query := `UPDATE webhook_event SET processed = FALSE, error_message = ? WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, errMsg, id)
	return err
}
