// Package reconcile backfills provider messages and conversations that webhooks missed.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/gateway"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/phone"
	"github.com/smsflow/smsflow/pkg/promlib"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"github.com/smsflow/smsflow/service/ingest"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

//go:generate moq -out reconcile_mocks_test.go . Lister

// Lister pages through provider history
type Lister interface {
	ListMessages(ctx context.Context, params gateway.ListParams) (gateway.MessagePage, error)
	ListConversations(ctx context.Context, params gateway.ListParams) (gateway.ConversationPage, error)
}

// Ingestor ...
type Ingestor interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	IngestMessage(ctx context.Context, msg gateway.Message, source string) (ingest.Result, error)
	ResolveContact(ctx context.Context, e164 string) (model.Contact, error)
	ResolveConversation(ctx context.Context, contactID int64, externalID string) (model.Conversation, error)
}

// MessageResult of a message reconciliation run
type MessageResult struct {
	Pages    int
	Created  int
	Updated  int
	Existing int
	Skipped  int
	Failed   int

	// Stopped is set when a page could not be fetched, earlier pages are kept
	Stopped bool
	Errors  []string
}

// ConversationResult ...
type ConversationResult struct {
	Pages   int
	Synced  int
	Skipped int
	Failed  int

	Stopped bool
	Errors  []string
}

// Service ...
type Service struct {
	provider         repository.Provider
	lister           Lister
	ingestor         Ingestor
	conversationRepo repository.Conversation
	activityRepo     repository.Activity
	timer            timer.Timer
	conf             config.ReconcileConfig
}

// NewService ...
func NewService(
	provider repository.Provider,
	lister Lister,
	ingestor Ingestor,
	conversationRepo repository.Conversation,
	activityRepo repository.Activity,
	t timer.Timer,
	conf config.ReconcileConfig,
) *Service {
	return &Service{
		provider:         provider,
		lister:           lister,
		ingestor:         ingestor,
		conversationRepo: conversationRepo,
		activityRepo:     activityRepo,
		timer:            t,
		conf:             conf,
	}
}

// ReconcileMessages ingests provider messages of the look-back window that are not stored yet
func (s *Service) ReconcileMessages(ctx context.Context) (MessageResult, error) {
	now := s.timer.Now().UTC()
	from := now.Add(-s.conf.LookBack)

	ctx, span := otellib.StartSpan(ctx, "reconcile.ReconcileMessages",
		attribute.String("from", from.Format(time.RFC3339)))
	defer span.End()

	logger := otellib.Extract(ctx)

	var result MessageResult
	cursor := ""
	for result.Pages < s.conf.MaxPages {
		page, err := s.lister.ListMessages(ctx, gateway.ListParams{
			Cursor:        cursor,
			Limit:         s.conf.PageSize,
			CreatedAfter:  from,
			CreatedBefore: now,
		})
		if err != nil {
			logger.Error("reconcile fetch page", zap.Int("page", result.Pages+1), zap.Error(err))
			result.Stopped = true
			result.Errors = append(result.Errors, fmt.Sprintf("page %d: %v", result.Pages+1, err))
			break
		}
		result.Pages++

		for _, msg := range page.Data {
			outcome, err := s.reconcileMessage(ctx, msg)
			if err != nil {
				logger.Warn("reconcile message", zap.String("message_id", msg.ID), zap.Error(err))
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msg.ID, err))
				promlib.ReconciledMessages.WithLabelValues("failed").Inc()
				continue
			}

			switch outcome {
			case ingest.ResultCreated:
				result.Created++
			case ingest.ResultUpdated:
				result.Updated++
			case ingest.ResultSkipped:
				result.Skipped++
			default:
				result.Existing++
			}
			promlib.ReconciledMessages.WithLabelValues(string(outcome)).Inc()
		}

		if page.Cursor == nil || *page.Cursor == "" {
			break
		}
		cursor = *page.Cursor
	}

	logger.Info("message reconciliation finished",
		zap.Int("pages", result.Pages),
		zap.Int("created", result.Created),
		zap.Int("existing", result.Existing),
		zap.Int("failed", result.Failed),
		zap.Bool("stopped", result.Stopped),
	)
	return result, nil
}

func (s *Service) reconcileMessage(ctx context.Context, msg gateway.Message) (ingest.Result, error) {
	if msg.ID != "" {
		exists, err := s.ingestor.Exists(s.provider.Readonly(ctx), msg.ID)
		if err != nil {
			return "", err
		}
		if exists {
			return ingest.ResultExisting, nil
		}
	}

	var result ingest.Result
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.ingestor.IngestMessage(ctx, msg, ingest.SourceReconcile)
		return err
	})
	return result, err
}

// SyncConversations links provider conversations to local ones and advances watermarks
func (s *Service) SyncConversations(ctx context.Context) (ConversationResult, error) {
	ctx, span := otellib.StartSpan(ctx, "reconcile.SyncConversations")
	defer span.End()

	logger := otellib.Extract(ctx)

	var result ConversationResult
	cursor := ""
	for result.Pages < s.conf.MaxPages {
		page, err := s.lister.ListConversations(ctx, gateway.ListParams{
			Cursor: cursor,
			Limit:  s.conf.PageSize,
		})
		if err != nil {
			logger.Error("sync conversations fetch page", zap.Int("page", result.Pages+1), zap.Error(err))
			result.Stopped = true
			result.Errors = append(result.Errors, fmt.Sprintf("page %d: %v", result.Pages+1, err))
			break
		}
		result.Pages++

		for _, conv := range page.Data {
			synced, err := s.syncConversation(ctx, conv)
			if err != nil {
				logger.Warn("sync conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("conversation %s: %v", conv.ID, err))
				continue
			}
			if synced {
				result.Synced++
			} else {
				result.Skipped++
			}
		}

		if page.Cursor == nil || *page.Cursor == "" {
			break
		}
		cursor = *page.Cursor
	}

	logger.Info("conversation sync finished",
		zap.Int("pages", result.Pages),
		zap.Int("synced", result.Synced),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) syncConversation(ctx context.Context, conv gateway.Conversation) (bool, error) {
	if conv.ID == "" || len(conv.Participants) == 0 {
		return false, nil
	}
	e164, err := phone.Normalize(conv.Participants[0])
	if err != nil {
		return false, nil
	}

	err = s.provider.Transact(ctx, func(ctx context.Context) error {
		contact, err := s.ingestor.ResolveContact(ctx, e164)
		if err != nil {
			return err
		}
		local, err := s.ingestor.ResolveConversation(ctx, contact.ID, conv.ID)
		if err != nil {
			return err
		}
		if conv.LastActivityAt.IsZero() {
			return nil
		}
		return s.conversationRepo.AdvanceWatermark(ctx, local.ID, conv.LastActivityAt.UTC())
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// CheckIntegrity counts activities without contact or conversation links
func (s *Service) CheckIntegrity(ctx context.Context) (repository.OrphanCount, error) {
	count, err := s.activityRepo.CountOrphanedActivities(s.provider.Readonly(ctx))
	if err != nil {
		return repository.OrphanCount{}, err
	}

	promlib.OrphanedActivities.WithLabelValues("conversation").Set(float64(count.MissingConversation))
	promlib.OrphanedActivities.WithLabelValues("contact").Set(float64(count.MissingContact))

	if count.MissingConversation > 0 || count.MissingContact > 0 {
		otellib.Extract(ctx).Warn("orphaned activities found",
			zap.Int64("missing_conversation", count.MissingConversation),
			zap.Int64("missing_contact", count.MissingContact),
		)
	}
	return count, nil
}
