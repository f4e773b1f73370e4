// Package inmem is an in-memory implementation of the repository interfaces.
// Transactions are serialized and roll back by restoring a snapshot.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type ctxTxKeyType struct {
}

type ctxReadonlyKeyType struct {
}

var ctxTxKey = ctxTxKeyType{}
var ctxReadonlyKey = ctxReadonlyKeyType{}

type tables struct {
	campaigns     map[int64]model.Campaign
	memberships   map[int64]model.Membership
	contacts      map[int64]model.Contact
	conversations map[int64]model.Conversation
	activities    map[int64]model.Activity
	events        map[int64]model.WebhookEvent
	retries       map[int64]model.FailedRetry

	lastID int64
}

func newTables() tables {
	return tables{
		campaigns:     map[int64]model.Campaign{},
		memberships:   map[int64]model.Membership{},
		contacts:      map[int64]model.Contact{},
		conversations: map[int64]model.Conversation{},
		activities:    map[int64]model.Activity{},
		events:        map[int64]model.WebhookEvent{},
		retries:       map[int64]model.FailedRetry{},
	}
}

func copyMap[T any](m map[int64]T) map[int64]T {
	result := make(map[int64]T, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

func (t tables) clone() tables {
	return tables{
		campaigns:     copyMap(t.campaigns),
		memberships:   copyMap(t.memberships),
		contacts:      copyMap(t.contacts),
		conversations: copyMap(t.conversations),
		activities:    copyMap(t.activities),
		events:        copyMap(t.events),
		retries:       copyMap(t.retries),
		lastID:        t.lastID,
	}
}

// Store holds every table in memory
type Store struct {
	txMu sync.Mutex

	mu   sync.Mutex
	data tables

	now func() time.Time
}

var _ repository.Provider = &Store{}

// NewStore ...
func NewStore() *Store {
	return &Store{
		data: newTables(),
		now:  time.Now,
	}
}

// Transact runs fn with a snapshot taken, fn returning an error restores the snapshot
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(ctxTxKey) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.restore(snapshot)
			panic(r)
		} else if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, ctxTxKey, true))
}

func (s *Store) restore(snapshot tables) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

// Readonly ...
func (s *Store) Readonly(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxReadonlyKey, true)
}

func (s *Store) lockRead(ctx context.Context) func() {
	if ctx.Value(ctxTxKey) == nil && ctx.Value(ctxReadonlyKey) == nil {
		panic("Not found readonly repository")
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) lockWrite(ctx context.Context) func() {
	if ctx.Value(ctxTxKey) == nil {
		panic("Not found transaction")
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) nextID() int64 {
	s.data.lastID++
	return s.data.lastID
}

// Repos returns every repository backed by this store
func (s *Store) Repos() Repos {
	return Repos{
		Campaign:     &campaignRepo{s: s},
		Membership:   &membershipRepo{s: s},
		Contact:      &contactRepo{s: s},
		Conversation: &conversationRepo{s: s},
		Activity:     &activityRepo{s: s},
		WebhookEvent: &webhookEventRepo{s: s},
		FailedRetry:  &failedRetryRepo{s: s},
	}
}

// Repos ...
type Repos struct {
	Campaign     repository.Campaign
	Membership   repository.Membership
	Contact      repository.Contact
	Conversation repository.Conversation
	Activity     repository.Activity
	WebhookEvent repository.WebhookEvent
	FailedRetry  repository.FailedRetry
}

// Count returns the number of rows of a table, for tests
func (s *Store) Count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch table {
	case "campaign":
		return len(s.data.campaigns)
	case "campaign_membership":
		return len(s.data.memberships)
	case "contact":
		return len(s.data.contacts)
	case "conversation":
		return len(s.data.conversations)
	case "activity":
		return len(s.data.activities)
	case "webhook_event":
		return len(s.data.events)
	case "failed_retry":
		return len(s.data.retries)
	default:
		panic("unknown table: " + table)
	}
}
