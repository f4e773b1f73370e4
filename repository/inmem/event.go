package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type webhookEventRepo struct {
	s *Store
}

func (r *webhookEventRepo) GetWebhookEvent(ctx context.Context, id int64) (model.WebhookEvent, error) {
	defer r.s.lockRead(ctx)()

	e, ok := r.s.data.events[id]
	if !ok {
		return model.WebhookEvent{}, repository.ErrNotFound
	}
	return e, nil
}

func (r *webhookEventRepo) ListUnprocessedEvents(
	ctx context.Context, before time.Time, limit int64,
) ([]model.WebhookEvent, error) {
	defer r.s.lockRead(ctx)()

	var result []model.WebhookEvent
	for _, e := range r.s.data.events {
		if !e.Processed && e.ReceivedAt.Before(before) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return page(result, 0, limit), nil
}

func (r *webhookEventRepo) InsertWebhookEvent(ctx context.Context, event model.WebhookEvent) (int64, error) {
	defer r.s.lockWrite(ctx)()

	event.ID = r.s.nextID()
	r.s.data.events[event.ID] = event
	return event.ID, nil
}

func (r *webhookEventRepo) MarkEventProcessed(ctx context.Context, id int64, at time.Time) error {
	defer r.s.lockWrite(ctx)()

	e, ok := r.s.data.events[id]
	if !ok {
		return nil
	}
	e.Processed = true
	e.ProcessedAt = sql.NullTime{Valid: true, Time: at}
	e.ErrorMessage = sql.NullString{}
	r.s.data.events[id] = e
	return nil
}

func (r *webhookEventRepo) MarkEventFailed(ctx context.Context, id int64, errMsg string) error {
	defer r.s.lockWrite(ctx)()

	e, ok := r.s.data.events[id]
	if !ok {
		return nil
	}
	e.Processed = false
	e.ErrorMessage = sql.NullString{Valid: true, String: errMsg}
	r.s.data.events[id] = e
	return nil
}

type failedRetryRepo struct {
	s *Store
}

func (r *failedRetryRepo) GetFailedRetry(ctx context.Context, id int64) (model.FailedRetry, error) {
	defer r.s.lockRead(ctx)()

	e, ok := r.s.data.retries[id]
	if !ok {
		return model.FailedRetry{}, repository.ErrNotFound
	}
	return e, nil
}

func (r *failedRetryRepo) list(fn func(e model.FailedRetry) bool) []model.FailedRetry {
	var result []model.FailedRetry
	for _, e := range r.s.data.retries {
		if fn(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *failedRetryRepo) ListDueRetries(
	ctx context.Context, now time.Time, maxRetries int64, limit int64,
) ([]model.FailedRetry, error) {
	defer r.s.lockRead(ctx)()

	result := r.list(func(e model.FailedRetry) bool {
		return !e.Resolved && e.RetryCount < maxRetries && !e.NextRetryAt.After(now)
	})
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].NextRetryAt.Before(result[j].NextRetryAt)
	})
	return page(result, 0, limit), nil
}

func (r *failedRetryRepo) ListExhaustedRetries(
	ctx context.Context, maxRetries int64, limit int64,
) ([]model.FailedRetry, error) {
	defer r.s.lockRead(ctx)()

	result := r.list(func(e model.FailedRetry) bool {
		return !e.Resolved && e.RetryCount >= maxRetries
	})
	return page(result, 0, limit), nil
}

func (r *failedRetryRepo) InsertFailedRetry(ctx context.Context, entry model.FailedRetry) (int64, error) {
	defer r.s.lockWrite(ctx)()

	entry.ID = r.s.nextID()
	entry.Resolved = false
	entry.CreatedAt = r.s.now()
	entry.UpdatedAt = entry.CreatedAt
	r.s.data.retries[entry.ID] = entry
	return entry.ID, nil
}

func (r *failedRetryRepo) MarkRetryResolved(ctx context.Context, id int64, at time.Time) error {
	defer r.s.lockWrite(ctx)()

	e, ok := r.s.data.retries[id]
	if !ok {
		return nil
	}
	e.Resolved = true
	e.ResolvedAt = sql.NullTime{Valid: true, Time: at}
	e.LastAttemptAt = sql.NullTime{Valid: true, Time: at}
	r.s.data.retries[id] = e
	return nil
}

func (r *failedRetryRepo) RecordRetryFailure(
	ctx context.Context, id int64, errMsg string, attemptAt time.Time, nextRetryAt time.Time,
) error {
	defer r.s.lockWrite(ctx)()

	e, ok := r.s.data.retries[id]
	if !ok {
		return nil
	}
	e.RetryCount++
	e.ErrorMessage = errMsg
	e.LastAttemptAt = sql.NullTime{Valid: true, Time: attemptAt}
	e.NextRetryAt = nextRetryAt
	r.s.data.retries[id] = e
	return nil
}
