package recovery

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository/inmem"
	"github.com/stretchr/testify/assert"
)

func newTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type serviceTest struct {
	store    *inmem.Store
	repos    inmem.Repos
	timer    *timer.Fake
	replayer *ReplayerMock
	svc      *Service
}

func newServiceTest() *serviceTest {
	store := inmem.NewStore()
	repos := store.Repos()
	fake := timer.NewFake(newTime("2022-05-10T12:00:00Z"))
	replayer := &ReplayerMock{}

	return &serviceTest{
		store:    store,
		repos:    repos,
		timer:    fake,
		replayer: replayer,
		svc: NewService(store, repos.FailedRetry, replayer, fake, config.RecoveryConfig{
			MaxRetries:  3,
			BaseBackoff: time.Minute,
			MaxBackoff:  time.Hour,
			BatchSize:   10,
		}),
	}
}

func (s *serviceTest) insertEntry(t *testing.T, nextRetryAt time.Time) int64 {
	var id int64
	err := s.store.Transact(context.Background(), func(ctx context.Context) error {
		var err error
		id, err = s.repos.FailedRetry.InsertFailedRetry(ctx, model.FailedRetry{
			WebhookEventID: sql.NullInt64{Valid: true, Int64: 77},
			EventType:      "message.received",
			Payload:        []byte(`{"id":"EV01"}`),
			ErrorMessage:   "deadlock",
			NextRetryAt:    nextRetryAt,
		})
		return err
	})
	assert.Equal(t, nil, err)
	return id
}

func (s *serviceTest) entry(t *testing.T, id int64) model.FailedRetry {
	e, err := s.repos.FailedRetry.GetFailedRetry(s.store.Readonly(context.Background()), id)
	assert.Equal(t, nil, err)
	return e
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(time.Minute, time.Hour, 0))
	assert.Equal(t, 2*time.Minute, Backoff(time.Minute, time.Hour, 1))
	assert.Equal(t, 8*time.Minute, Backoff(time.Minute, time.Hour, 3))
	assert.Equal(t, time.Hour, Backoff(time.Minute, time.Hour, 10))
	assert.Equal(t, time.Hour, Backoff(time.Minute, time.Hour, 100))
}

func TestRecoverFailed_Resolves(t *testing.T) {
	s := newServiceTest()
	id := s.insertEntry(t, newTime("2022-05-10T11:59:00Z"))

	s.replayer.ReplayFunc = func(ctx context.Context, eventID sql.NullInt64, payload []byte) error {
		return nil
	}

	result, err := s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{Processed: 1, Resolved: 1}, result)

	calls := s.replayer.ReplayCalls()
	assert.Equal(t, 1, len(calls))
	assert.Equal(t, sql.NullInt64{Valid: true, Int64: 77}, calls[0].EventID)
	assert.Equal(t, []byte(`{"id":"EV01"}`), calls[0].Payload)

	e := s.entry(t, id)
	assert.Equal(t, true, e.Resolved)
	assert.Equal(t, sql.NullTime{Valid: true, Time: newTime("2022-05-10T12:00:00Z")}, e.ResolvedAt)

	// resolved entries are not selected again
	result, err = s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{}, result)
}

func TestRecoverFailed_Not_Due_Yet(t *testing.T) {
	s := newServiceTest()
	s.insertEntry(t, newTime("2022-05-10T12:05:00Z"))

	result, err := s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{}, result)
	assert.Equal(t, 0, len(s.replayer.ReplayCalls()))
}

func TestRecoverFailed_Backoff_Until_Exhausted(t *testing.T) {
	s := newServiceTest()
	id := s.insertEntry(t, newTime("2022-05-10T12:00:00Z"))

	s.replayer.ReplayFunc = func(ctx context.Context, eventID sql.NullInt64, payload []byte) error {
		return errors.New("contact locked")
	}

	//--------------------------------
	// first retry
	//--------------------------------
	result, err := s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{Processed: 1, Failed: 1}, result)

	e := s.entry(t, id)
	assert.Equal(t, int64(1), e.RetryCount)
	assert.Equal(t, "contact locked", e.ErrorMessage)
	assert.Equal(t, newTime("2022-05-10T12:02:00Z"), e.NextRetryAt)
	assert.Equal(t, false, e.Resolved)

	//--------------------------------
	// second retry
	//--------------------------------
	s.timer.Set(newTime("2022-05-10T12:02:00Z"))
	result, err = s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{Processed: 1, Failed: 1}, result)
	assert.Equal(t, newTime("2022-05-10T12:06:00Z"), s.entry(t, id).NextRetryAt)

	//--------------------------------
	// third retry reaches the cap
	//--------------------------------
	s.timer.Set(newTime("2022-05-10T12:06:00Z"))
	result, err = s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{Processed: 1, Failed: 1, Exhausted: 1}, result)
	assert.Equal(t, int64(3), s.entry(t, id).RetryCount)

	s.timer.Set(newTime("2022-05-11T00:00:00Z"))
	result, err = s.svc.RecoverFailed(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, Result{}, result)

	exhausted, err := s.svc.ListExhausted(context.Background(), 10)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(exhausted))
	assert.Equal(t, id, exhausted[0].ID)

	//--------------------------------
	// manual retry ignores the cap
	//--------------------------------
	s.replayer.ReplayFunc = func(ctx context.Context, eventID sql.NullInt64, payload []byte) error {
		return nil
	}
	resolved, err := s.svc.Retry(context.Background(), id)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, resolved)
	assert.Equal(t, true, s.entry(t, id).Resolved)

	exhausted, err = s.svc.ListExhausted(context.Background(), 10)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(exhausted))
	assert.Equal(t, 4, len(s.replayer.ReplayCalls()))
}

func TestRetry_Not_Found(t *testing.T) {
	s := newServiceTest()

	_, err := s.svc.Retry(context.Background(), 123)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
