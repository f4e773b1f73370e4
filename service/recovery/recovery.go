// Package recovery re-runs failed webhook processing with exponential backoff.
package recovery

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/promlib"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"go.uber.org/zap"
)

//go:generate moq -out recovery_mocks_test.go . Replayer

// Replayer re-processes a stored webhook payload
type Replayer interface {
	Replay(ctx context.Context, eventID sql.NullInt64, payload []byte) error
}

// Result of a recovery run
type Result struct {
	Processed int
	Resolved  int
	Failed    int
	Exhausted int
}

// Service ...
type Service struct {
	provider  repository.Provider
	retryRepo repository.FailedRetry
	replayer  Replayer
	timer     timer.Timer
	conf      config.RecoveryConfig
}

// NewService ...
func NewService(
	provider repository.Provider,
	retryRepo repository.FailedRetry,
	replayer Replayer,
	t timer.Timer,
	conf config.RecoveryConfig,
) *Service {
	return &Service{
		provider:  provider,
		retryRepo: retryRepo,
		replayer:  replayer,
		timer:     t,
		conf:      conf,
	}
}

// Backoff returns base * 2^retryCount, capped at max
func Backoff(base, max time.Duration, retryCount int64) time.Duration {
	d := base
	for i := int64(0); i < retryCount; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// RecoverFailed retries every due entry once
func (s *Service) RecoverFailed(ctx context.Context) (Result, error) {
	ctx, span := otellib.StartSpan(ctx, "recovery.RecoverFailed")
	defer span.End()

	now := s.timer.Now().UTC()
	entries, err := s.retryRepo.ListDueRetries(s.provider.Readonly(ctx), now, s.conf.MaxRetries, s.conf.BatchSize)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, entry := range entries {
		result.Processed++

		resolved, exhausted, err := s.attempt(ctx, entry)
		if err != nil {
			return result, err
		}
		switch {
		case resolved:
			result.Resolved++
		case exhausted:
			result.Failed++
			result.Exhausted++
		default:
			result.Failed++
		}
	}

	if result.Processed > 0 {
		otellib.Extract(ctx).Info("recovery run finished",
			zap.Int("processed", result.Processed),
			zap.Int("resolved", result.Resolved),
			zap.Int("failed", result.Failed),
			zap.Int("exhausted", result.Exhausted),
		)
	}
	return result, nil
}

// attempt returns an error only when the outcome could not be recorded
func (s *Service) attempt(ctx context.Context, entry model.FailedRetry) (resolved bool, exhausted bool, err error) {
	logger := otellib.Extract(ctx).With(
		zap.Int64("retry_id", entry.ID),
		zap.String("event_type", entry.EventType),
		zap.Int64("retry_count", entry.RetryCount),
	)

	replayErr := s.replayer.Replay(ctx, entry.WebhookEventID, entry.Payload)
	now := s.timer.Now().UTC()

	if replayErr == nil {
		err := s.provider.Transact(ctx, func(ctx context.Context) error {
			return s.retryRepo.MarkRetryResolved(ctx, entry.ID, now)
		})
		if err != nil {
			return false, false, err
		}
		logger.Info("failed event recovered")
		promlib.RetryEntries.WithLabelValues("resolved").Inc()
		return true, false, nil
	}

	count := entry.RetryCount + 1
	next := now.Add(Backoff(s.conf.BaseBackoff, s.conf.MaxBackoff, count))

	err = s.provider.Transact(ctx, func(ctx context.Context) error {
		return s.retryRepo.RecordRetryFailure(ctx, entry.ID, replayErr.Error(), now, next)
	})
	if err != nil {
		return false, false, err
	}

	exhausted = count >= s.conf.MaxRetries
	if exhausted {
		logger.Warn("failed event exhausted retries", zap.Error(replayErr))
		promlib.RetryEntries.WithLabelValues("exhausted").Inc()
	} else {
		logger.Info("failed event retry failed", zap.Time("next_retry_at", next), zap.Error(replayErr))
		promlib.RetryEntries.WithLabelValues("failed").Inc()
	}
	return false, exhausted, nil
}

// ListExhausted returns unresolved entries that reached the retry cap
func (s *Service) ListExhausted(ctx context.Context, limit int64) ([]model.FailedRetry, error) {
	return s.retryRepo.ListExhaustedRetries(s.provider.Readonly(ctx), s.conf.MaxRetries, limit)
}

// Retry re-attempts one entry now, regardless of its retry count
func (s *Service) Retry(ctx context.Context, id int64) (bool, error) {
	entry, err := s.retryRepo.GetFailedRetry(s.provider.Readonly(ctx), id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, apperr.New(apperr.CodeNotFound, "retry entry %d not found", id)
	}
	if err != nil {
		return false, err
	}
	if entry.Resolved {
		return true, nil
	}

	resolved, _, err := s.attempt(ctx, entry)
	return resolved, err
}
