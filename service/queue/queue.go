// Package queue sends the pending memberships of running campaigns and
// evaluates A/B tests.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/gateway"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/promlib"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"github.com/smsflow/smsflow/service/bounce"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

//go:generate moq -out queue_mocks_test.go . Sender ConversationResolver

// unlimitedBatch is the page size used when queue.batch_size is not set
const unlimitedBatch int64 = math.MaxInt32

// Sender dispatches one SMS through the provider
type Sender interface {
	SendMessage(ctx context.Context, req gateway.SendRequest) (gateway.SendResult, error)
}

// ConversationResolver ...
type ConversationResolver interface {
	ResolveConversation(ctx context.Context, contactID int64, externalID string) (model.Conversation, error)
}

// SkipReason ...
type SkipReason string

const (
	// SkipOutsideBusinessHours ...
	SkipOutsideBusinessHours SkipReason = "outside_business_hours"

	// SkipOptedOut the contact holds an SMS opt-out flag
	SkipOptedOut SkipReason = "opted_out"

	// SkipMissingContact ...
	SkipMissingContact SkipReason = "missing_contact"
)

// LimitNotice is reported when a campaign reached its daily limit with memberships still pending
type LimitNotice struct {
	CampaignID int64
	Name       string
	DailyLimit int64
	SentToday  int64
}

// Winner of an A/B test
type Winner struct {
	CampaignID int64
	Variant    model.Variant
	PValue     float64
}

// Result of a queue run
type Result struct {
	Sent        int
	Skipped     int
	Failed      int
	SkipReasons map[SkipReason]int

	LimitNotices []LimitNotice
	Completed    []int64
	Winners      []Winner
	Errors       []string
}

func (r *Result) skip(reason SkipReason) {
	r.Skipped++
	if r.SkipReasons == nil {
		r.SkipReasons = map[SkipReason]int{}
	}
	r.SkipReasons[reason]++
	promlib.CampaignSends.WithLabelValues("skipped").Inc()
}

// Processor ...
type Processor struct {
	provider         repository.Provider
	campaignRepo     repository.Campaign
	membershipRepo   repository.Membership
	contactRepo      repository.Contact
	conversationRepo repository.Conversation
	activityRepo     repository.Activity
	resolver         ConversationResolver
	sender           Sender
	timer            timer.Timer

	conf            config.QueueConfig
	abConf          config.ABTestConfig
	defaultTimezone string

	random func() float64
}

// Option ...
type Option func(p *Processor)

// WithRandom replaces the variant draw source, fn must return values in [0, 1)
func WithRandom(fn func() float64) Option {
	return func(p *Processor) {
		p.random = fn
	}
}

// NewProcessor ...
func NewProcessor(
	provider repository.Provider,
	campaignRepo repository.Campaign,
	membershipRepo repository.Membership,
	contactRepo repository.Contact,
	conversationRepo repository.Conversation,
	activityRepo repository.Activity,
	resolver ConversationResolver,
	sender Sender,
	t timer.Timer,
	conf config.Config,
	options ...Option,
) *Processor {
	p := &Processor{
		provider:         provider,
		campaignRepo:     campaignRepo,
		membershipRepo:   membershipRepo,
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		activityRepo:     activityRepo,
		resolver:         resolver,
		sender:           sender,
		timer:            t,

		conf:            conf.Queue,
		abConf:          conf.ABTest,
		defaultTimezone: conf.DefaultTimezone,

		random: rand.Float64,
	}
	for _, fn := range options {
		fn(p)
	}
	return p
}

// ProcessCampaignQueue sends pending memberships of every running campaign then evaluates A/B tests.
// Business rule skips are counted in the result, errors of one campaign do not stop the others.
func (p *Processor) ProcessCampaignQueue(ctx context.Context) (Result, error) {
	ctx, span := otellib.StartSpan(ctx, "queue.ProcessCampaignQueue")
	defer span.End()

	logger := otellib.Extract(ctx)

	campaigns, err := p.campaignRepo.ListCampaignsByStatus(p.provider.Readonly(ctx), model.CampaignStatusRunning)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.processCampaign(ctx, c, &result); err != nil {
			logger.Error("process campaign", zap.Int64("campaign_id", c.ID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("campaign %d: %v", c.ID, err))
		}
	}

	winners, err := p.EvaluateABTests(ctx)
	if err != nil {
		logger.Error("evaluate ab tests", zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("ab tests: %v", err))
	}
	result.Winners = winners

	logger.Info("campaign queue processed",
		zap.Int("campaigns", len(campaigns)),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("limit_notices", len(result.LimitNotices)),
	)
	return result, nil
}

func (p *Processor) complete(ctx context.Context, c model.Campaign, result *Result) error {
	err := p.provider.Transact(ctx, func(ctx context.Context) error {
		return p.campaignRepo.UpdateCampaignStatus(ctx, c.ID, model.CampaignStatusComplete)
	})
	if err != nil {
		return err
	}
	otellib.Extract(ctx).Info("campaign complete", zap.Int64("campaign_id", c.ID))
	result.Completed = append(result.Completed, c.ID)
	return nil
}

func (p *Processor) processCampaign(ctx context.Context, c model.Campaign, result *Result) error {
	ctx, span := otellib.StartSpan(ctx, "queue.processCampaign", attribute.Int64("campaign.id", c.ID))
	defer span.End()

	readCtx := p.provider.Readonly(ctx)

	loc := location(c.Timezone, p.defaultTimezone)
	now := p.timer.Now()
	local := now.In(loc)

	limit := p.conf.BatchSize
	if limit <= 0 {
		limit = unlimitedBatch
	}
	var sentToday int64
	if c.DailyLimit > 0 {
		var err error
		sentToday, err = p.membershipRepo.CountSentSince(readCtx, c.ID, startOfDay(local).UTC())
		if err != nil {
			return err
		}
		remaining := c.DailyLimit - sentToday
		if remaining <= 0 {
			return p.limitReached(ctx, c, sentToday, result)
		}
		if remaining < limit {
			limit = remaining
		}
	}

	pending, err := p.membershipRepo.ListPendingMemberships(readCtx, c.ID, limit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return p.complete(ctx, c, result)
	}

	if c.CheckBusinessHours {
		hours, err := p.businessHoursOf(c)
		if err != nil {
			return err
		}
		if !hours.contains(local) {
			for range pending {
				result.skip(SkipOutsideBusinessHours)
			}
			return nil
		}
	}

	contactIDs := make([]int64, 0, len(pending))
	for _, m := range pending {
		contactIDs = append(contactIDs, m.ContactID)
	}
	contacts, err := p.contactRepo.GetContactsByIDs(readCtx, contactIDs)
	if err != nil {
		return err
	}
	contactMap := make(map[int64]model.Contact, len(contacts))
	for _, contact := range contacts {
		contactMap[contact.ID] = contact
	}

	var optedOut []int64
	var sent int64
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		contact, ok := contactMap[m.ContactID]
		if !ok {
			result.skip(SkipMissingContact)
			continue
		}
		if contact.SMSOptOut {
			optedOut = append(optedOut, m.ID)
			result.skip(SkipOptedOut)
			continue
		}

		delivered, err := p.send(ctx, c, m, contact, loc)
		if err != nil {
			return err
		}
		sent++
		if delivered {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	if len(optedOut) > 0 {
		err := p.provider.Transact(ctx, func(ctx context.Context) error {
			return p.membershipRepo.BulkUpdateMembershipStatus(ctx, optedOut, model.MembershipStatusOptedOut)
		})
		if err != nil {
			return err
		}
	}

	left, err := p.membershipRepo.CountPendingMemberships(p.provider.Readonly(ctx), c.ID)
	if err != nil {
		return err
	}
	if left == 0 {
		return p.complete(ctx, c, result)
	}
	if c.DailyLimit > 0 && sentToday+sent >= c.DailyLimit {
		return p.limitReached(ctx, c, sentToday+sent, result)
	}
	return nil
}

func (p *Processor) limitReached(ctx context.Context, c model.Campaign, sentToday int64, result *Result) error {
	otellib.Extract(ctx).Info("campaign daily limit reached",
		zap.Int64("campaign_id", c.ID),
		zap.Int64("daily_limit", c.DailyLimit),
		zap.Int64("sent_today", sentToday),
	)
	result.LimitNotices = append(result.LimitNotices, LimitNotice{
		CampaignID: c.ID,
		Name:       c.Name,
		DailyLimit: c.DailyLimit,
		SentToday:  sentToday,
	})
	return nil
}

func (p *Processor) lastContact(ctx context.Context, contactID int64, loc *time.Location) (string, error) {
	if !p.conf.ConversationContext {
		return "", nil
	}
	conv, err := p.conversationRepo.GetConversationByContact(p.provider.Readonly(ctx), contactID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !conv.LastActivityAt.Valid {
		return "", nil
	}
	return lastContactText(conv.LastActivityAt.Time, p.timer.Now(), loc), nil
}

// send returns false when the provider rejected the message, the membership is then failed.
// An error is returned only when the outcome could not be stored.
func (p *Processor) send(
	ctx context.Context, c model.Campaign, m model.Membership, contact model.Contact, loc *time.Location,
) (bool, error) {
	logger := otellib.Extract(ctx).With(
		zap.Int64("campaign_id", c.ID),
		zap.Int64("membership_id", m.ID),
	)

	variant := p.selectVariant(c)

	lastContact, err := p.lastContact(ctx, contact.ID, loc)
	if err != nil {
		return false, err
	}
	body := Personalize(c.Template(variant), contact, lastContact)

	req := gateway.SendRequest{
		To:      []string{contact.Phone},
		Content: body,
	}
	if c.SenderPhone.Valid {
		req.From = c.SenderPhone.String
	}

	res, sendErr := p.sender.SendMessage(ctx, req)
	now := p.timer.Now().UTC()

	if sendErr != nil {
		text := gateway.ErrorText(sendErr)
		category := bounce.ClassifySendError(text)
		logger.Warn("campaign send failed", zap.String("category", string(category)), zap.Error(sendErr))

		err := p.provider.Transact(ctx, func(ctx context.Context) error {
			return p.membershipRepo.MarkMembershipFailed(ctx, m.ID, variant, text, category, now)
		})
		if err != nil {
			return false, err
		}
		promlib.CampaignSends.WithLabelValues("failed").Inc()
		return false, nil
	}

	err = p.provider.Transact(ctx, func(ctx context.Context) error {
		conv, err := p.resolver.ResolveConversation(ctx, contact.ID, "")
		if err != nil {
			return err
		}

		activityID, err := p.recordOutbound(ctx, c, variant, req, res, conv, contact, now)
		if err != nil {
			return err
		}

		if err := p.membershipRepo.MarkMembershipSent(ctx, m.ID, variant, activityID, now); err != nil {
			return err
		}
		return p.conversationRepo.AdvanceWatermark(ctx, conv.ID, now)
	})
	if err != nil {
		p.markUnrecorded(ctx, logger, m, variant, res, err, now)
		return false, err
	}

	logger.Debug("campaign message sent", zap.String("message_id", res.ID), zap.String("variant", string(variant)))
	promlib.CampaignSends.WithLabelValues("sent").Inc()
	return true, nil
}

// markUnrecorded takes a membership out of the pending set when the provider accepted
// the message but storing the outcome failed, so the next run does not send it again
func (p *Processor) markUnrecorded(
	ctx context.Context, logger *zap.Logger, m model.Membership, variant model.Variant,
	res gateway.SendResult, recordErr error, now time.Time,
) {
	logger = logger.With(zap.String("message_id", res.ID), zap.NamedError("record_error", recordErr))
	logger.Error("campaign message sent but not recorded")

	text := fmt.Sprintf("sent as %q, recording failed: %v", res.ID, recordErr)
	err := p.provider.Transact(ctx, func(ctx context.Context) error {
		return p.membershipRepo.MarkMembershipFailed(ctx, m.ID, variant, text, model.BounceNone, now)
	})
	if err != nil {
		logger.Error("mark unrecorded membership", zap.Error(err))
		return
	}
	promlib.CampaignSends.WithLabelValues("unrecorded").Inc()
}

// recordOutbound stores the outbound activity, a webhook may already have stored it
func (p *Processor) recordOutbound(
	ctx context.Context, c model.Campaign, variant model.Variant,
	req gateway.SendRequest, res gateway.SendResult,
	conv model.Conversation, contact model.Contact, now time.Time,
) (int64, error) {
	externalID := res.ID
	if externalID == "" {
		externalID = "local:" + uuid.NewString()
	}
	status := res.Status
	if status == "" {
		status = model.MessageStatusQueued
	}

	metadata := model.ActivityMetadata{
		From:       req.From,
		To:         req.To,
		CampaignID: c.ID,
		Variant:    variant,
		Source:     "campaign",
	}

	activityID, err := p.activityRepo.InsertActivity(ctx, model.Activity{
		ExternalID:     externalID,
		Kind:           model.ActivityKindMessage,
		Direction:      model.DirectionOutbound,
		Status:         status,
		Body:           req.Content,
		OccurredAt:     now,
		Metadata:       metadata,
		ContactID:      sql.NullInt64{Valid: true, Int64: contact.ID},
		ConversationID: sql.NullInt64{Valid: true, Int64: conv.ID},
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		return activityID, err
	}

	existing, err := p.activityRepo.GetActivityByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	existing.Metadata = existing.Metadata.Merge(model.ActivityMetadata{CampaignID: c.ID, Variant: variant})
	if err := p.activityRepo.UpdateActivity(ctx, existing); err != nil {
		return 0, err
	}
	return existing.ID, nil
}
