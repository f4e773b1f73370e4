package repository

import (
	"context"
	"time"

	"github.com/smsflow/smsflow/model"
)

// FailedRetry ...
type FailedRetry interface {
	GetFailedRetry(ctx context.Context, id int64) (model.FailedRetry, error)
	ListDueRetries(ctx context.Context, now time.Time, maxRetries int64, limit int64) ([]model.FailedRetry, error)
	ListExhaustedRetries(ctx context.Context, maxRetries int64, limit int64) ([]model.FailedRetry, error)

	InsertFailedRetry(ctx context.Context, entry model.FailedRetry) (int64, error)
	MarkRetryResolved(ctx context.Context, id int64, at time.Time) error
	RecordRetryFailure(ctx context.Context, id int64, errMsg string, attemptAt time.Time, nextRetryAt time.Time) error
}

type failedRetryImpl struct {
}

// NewFailedRetry ...
func NewFailedRetry() FailedRetry {
	return &failedRetryImpl{}
}

const failedRetryColumns = `
	id, webhook_event_id, event_type, payload, error_message, retry_count, resolved,
	resolved_at, next_retry_at, last_attempt_at, created_at, updated_at
`

// GetFailedRetry ...
func (f *failedRetryImpl) GetFailedRetry(ctx context.Context, id int64) (model.FailedRetry, error) {
	query := `SELECT ` + failedRetryColumns + ` FROM failed_retry WHERE id = ?`
	var result model.FailedRetry
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// ListDueRetries returns unresolved entries below the retry cap whose next attempt is due
func (f *failedRetryImpl) ListDueRetries(
	ctx context.Context, now time.Time, maxRetries int64, limit int64,
) ([]model.FailedRetry, error) {
	query := `SELECT ` + failedRetryColumns + ` FROM failed_retry
WHERE resolved = FALSE AND retry_count < ? AND next_retry_at <= ?
ORDER BY next_retry_at, id LIMIT ?`
	var result []model.FailedRetry
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, maxRetries, now, limit)
	return result, err
}

// ListExhaustedRetries ...
func (f *failedRetryImpl) ListExhaustedRetries(
	ctx context.Context, maxRetries int64, limit int64,
) ([]model.FailedRetry, error) {
	query := `SELECT ` + failedRetryColumns + ` FROM failed_retry
WHERE resolved = FALSE AND retry_count >= ?
ORDER BY id LIMIT ?`
	var result []model.FailedRetry
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, maxRetries, limit)
	return result, err
}

// InsertFailedRetry ...
func (f *failedRetryImpl) InsertFailedRetry(ctx context.Context, entry model.FailedRetry) (int64, error) {
	query := `
INSERT INTO failed_retry (webhook_event_id, event_type, payload, error_message, retry_count, next_retry_at)
VALUES (:webhook_event_id, :event_type, :payload, :error_message, :retry_count, :next_retry_at)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, entry)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// MarkRetryResolved ...
func (f *failedRetryImpl) MarkRetryResolved(ctx context.Context, id int64, at time.Time) error {
	query := `
UPDATE failed_retry SET resolved = TRUE, resolved_at = ?, last_attempt_at = ?
WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, at, at, id)
	return err
}

// RecordRetryFailure increments retry_count
func (f *failedRetryImpl) RecordRetryFailure(
	ctx context.Context, id int64, errMsg string, attemptAt time.Time, nextRetryAt time.Time,
) error {
	query := `
UPDATE failed_retry
SET retry_count = retry_count + 1, error_message = ?, last_attempt_at = ?, next_retry_at = ?
WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, errMsg, attemptAt, nextRetryAt, id)
	return err
}
