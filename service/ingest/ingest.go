// Package ingest writes provider messages and calls into the event store.
// It is shared by webhook processing and reconciliation.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/gateway"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/phone"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/pkg/util"
	"github.com/smsflow/smsflow/repository"
	"github.com/smsflow/smsflow/service/bounce"
	"go.uber.org/zap"
)

// Result of ingesting one provider object
type Result string

const (
	// ResultCreated a new activity was written
	ResultCreated Result = "created"

	// ResultUpdated an existing activity received a status update
	ResultUpdated Result = "updated"

	// ResultExisting the activity was written concurrently by another writer
	ResultExisting Result = "existing"

	// ResultSkipped a status update for an unknown activity without participant data
	ResultSkipped Result = "skipped"
)

// Source of the ingested object, stored in the activity metadata
const (
	SourceWebhook   = "webhook"
	SourceReconcile = "reconciliation"
)

// DeliveryApplier updates campaign memberships from outbound delivery statuses
type DeliveryApplier interface {
	ApplyDeliveryStatus(ctx context.Context, activity model.Activity) (model.BounceCategory, error)
}

// Service ...
type Service struct {
	contactRepo      repository.Contact
	conversationRepo repository.Conversation
	activityRepo     repository.Activity
	membershipRepo   repository.Membership
	delivery         DeliveryApplier
	timer            timer.Timer

	replyWindow time.Duration
}

// NewService ...
func NewService(
	contactRepo repository.Contact,
	conversationRepo repository.Conversation,
	activityRepo repository.Activity,
	membershipRepo repository.Membership,
	delivery DeliveryApplier,
	t timer.Timer,
	replyWindow time.Duration,
) *Service {
	return &Service{
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		activityRepo:     activityRepo,
		membershipRepo:   membershipRepo,
		delivery:         delivery,
		timer:            t,
		replyWindow:      replyWindow,
	}
}

// Exists reports whether an activity with the external id is stored
func (s *Service) Exists(ctx context.Context, externalID string) (bool, error) {
	_, err := s.activityRepo.GetActivityByExternalID(ctx, externalID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func participant(inbound bool, from string, to []string, participants []string) string {
	if inbound && from != "" {
		return from
	}
	if !inbound && len(to) > 0 && to[0] != "" {
		return to[0]
	}
	if len(participants) > 0 {
		return participants[0]
	}
	return ""
}

func direction(inbound bool) model.ActivityDirection {
	if inbound {
		return model.DirectionInbound
	}
	return model.DirectionOutbound
}

func (s *Service) occurredAt(t time.Time) time.Time {
	if t.IsZero() {
		return s.timer.Now().UTC()
	}
	return t.UTC()
}

func errorDetail(msg gateway.Message) string {
	switch {
	case msg.ErrorCode != "" && msg.ErrorMessage != "":
		return msg.ErrorCode + ": " + msg.ErrorMessage
	case msg.ErrorCode != "":
		return msg.ErrorCode
	default:
		return msg.ErrorMessage
	}
}

// IngestMessage must be called inside a transaction
func (s *Service) IngestMessage(ctx context.Context, msg gateway.Message, source string) (Result, error) {
	if msg.ID == "" {
		return "", apperr.New(apperr.CodeInvalidPayload, "message id is missing")
	}

	status := strings.ToLower(msg.Status)
	patch := model.ActivityMetadata{
		ConversationExternalID: msg.ConversationID,
		MediaURLs:              msg.MediaURLs,
		ErrorDetail:            errorDetail(msg),
	}

	existing, err := s.activityRepo.GetActivityByExternalID(ctx, msg.ID)
	if err == nil {
		return ResultUpdated, s.updateActivity(ctx, existing, status, msg.Content(), patch)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	inbound := msg.IsInbound()
	rawPhone := participant(inbound, msg.From, msg.To, nil)
	if rawPhone == "" {
		otellib.Extract(ctx).Info("skip status update of unknown message", zap.String("external_id", msg.ID))
		return ResultSkipped, nil
	}

	if status == "" && inbound {
		status = model.MessageStatusReceived
	}

	contact, conv, err := s.resolve(ctx, rawPhone, msg.ConversationID)
	if err != nil {
		return "", err
	}

	patch.PhoneNumberID = msg.PhoneNumberID
	patch.UserID = msg.UserID
	patch.From = msg.From
	patch.To = msg.To
	patch.Source = source

	activity := model.Activity{
		ExternalID:     msg.ID,
		Kind:           model.ActivityKindMessage,
		Direction:      direction(inbound),
		Status:         status,
		Body:           msg.Content(),
		OccurredAt:     s.occurredAt(msg.CreatedAt),
		Metadata:       patch,
		ContactID:      sql.NullInt64{Valid: true, Int64: contact.ID},
		ConversationID: sql.NullInt64{Valid: true, Int64: conv.ID},
	}

	activity.ID, err = s.activityRepo.InsertActivity(ctx, activity)
	if errors.Is(err, repository.ErrDuplicate) {
		return ResultExisting, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.conversationRepo.AdvanceWatermark(ctx, conv.ID, activity.OccurredAt); err != nil {
		return "", err
	}

	if inbound {
		if err := s.handleInboundText(ctx, contact, activity); err != nil {
			return "", err
		}
	}
	return ResultCreated, nil
}

func (s *Service) updateActivity(
	ctx context.Context, existing model.Activity, status string, body string, patch model.ActivityMetadata,
) error {
	if status != "" {
		existing.Status = status
	}
	if existing.Body == "" && body != "" {
		existing.Body = body
	}
	existing.Metadata = existing.Metadata.Merge(patch)

	if existing.Kind == model.ActivityKindMessage && model.IsTerminalMessageStatus(existing.Status) {
		category, err := s.delivery.ApplyDeliveryStatus(ctx, existing)
		if err != nil {
			return err
		}
		existing.Metadata.BounceCategory = category
	}

	if err := s.activityRepo.UpdateActivity(ctx, existing); err != nil {
		return err
	}

	if existing.ConversationID.Valid {
		return s.conversationRepo.AdvanceWatermark(ctx, existing.ConversationID.Int64, existing.OccurredAt)
	}
	return nil
}

// IngestCall must be called inside a transaction
func (s *Service) IngestCall(ctx context.Context, call gateway.Call, source string) (Result, error) {
	if call.ID == "" {
		return "", apperr.New(apperr.CodeInvalidPayload, "call id is missing")
	}

	status := strings.ToLower(call.Status)
	patch := model.ActivityMetadata{
		ConversationExternalID: call.ConversationID,
		DurationSeconds:        call.Duration,
	}

	existing, err := s.activityRepo.GetActivityByExternalID(ctx, call.ID)
	if err == nil {
		return ResultUpdated, s.updateActivity(ctx, existing, status, "", patch)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	inbound := call.IsInbound()
	rawPhone := participant(inbound, call.From, call.To, call.Participants)
	if rawPhone == "" {
		otellib.Extract(ctx).Info("skip status update of unknown call", zap.String("external_id", call.ID))
		return ResultSkipped, nil
	}

	contact, conv, err := s.resolve(ctx, rawPhone, call.ConversationID)
	if err != nil {
		return "", err
	}

	patch.PhoneNumberID = call.PhoneNumberID
	patch.UserID = call.UserID
	patch.From = call.From
	patch.To = call.To
	patch.Source = source

	activity := model.Activity{
		ExternalID:     call.ID,
		Kind:           model.ActivityKindCall,
		Direction:      direction(inbound),
		Status:         status,
		OccurredAt:     s.occurredAt(call.CreatedAt),
		Metadata:       patch,
		ContactID:      sql.NullInt64{Valid: true, Int64: contact.ID},
		ConversationID: sql.NullInt64{Valid: true, Int64: conv.ID},
	}

	activity.ID, err = s.activityRepo.InsertActivity(ctx, activity)
	if errors.Is(err, repository.ErrDuplicate) {
		return ResultExisting, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.conversationRepo.AdvanceWatermark(ctx, conv.ID, activity.OccurredAt); err != nil {
		return "", err
	}
	return ResultCreated, nil
}

// UpdateCall merges AI derived data (recording, summary, transcript) into a stored call.
// Must be called inside a transaction.
func (s *Service) UpdateCall(ctx context.Context, callID string, patch model.ActivityMetadata) error {
	if callID == "" {
		return apperr.New(apperr.CodeInvalidPayload, "call id is missing")
	}

	activity, err := s.activityRepo.GetActivityByExternalID(ctx, callID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.CodeNotFound, "call %s not found", callID)
	}
	if err != nil {
		return err
	}
	if activity.Kind != model.ActivityKindCall {
		return apperr.New(apperr.CodeNotFound, "activity %s is not a call", callID)
	}

	activity.Metadata = activity.Metadata.Merge(patch)
	return s.activityRepo.UpdateActivity(ctx, activity)
}

func (s *Service) resolve(
	ctx context.Context, rawPhone string, conversationExternalID string,
) (model.Contact, model.Conversation, error) {
	e164, err := phone.Normalize(rawPhone)
	if err != nil {
		return model.Contact{}, model.Conversation{}, apperr.New(apperr.CodeMissingContact,
			"invalid participant phone %q", rawPhone)
	}

	contact, err := s.ResolveContact(ctx, e164)
	if err != nil {
		return model.Contact{}, model.Conversation{}, err
	}

	conv, err := s.ResolveConversation(ctx, contact.ID, conversationExternalID)
	if err != nil {
		return model.Contact{}, model.Conversation{}, err
	}
	return contact, conv, nil
}

// ResolveContact finds the contact by E.164 phone or creates it
func (s *Service) ResolveContact(ctx context.Context, e164 string) (model.Contact, error) {
	hash := util.PhoneHash(e164)

	contact, err := s.contactRepo.GetContactByPhone(ctx, hash, e164)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Contact{}, err
	}

	contact = model.Contact{
		Phone:     e164,
		PhoneHash: hash,
	}
	contact.ID, err = s.contactRepo.InsertContact(ctx, contact)
	if errors.Is(err, repository.ErrDuplicate) {
		contact, err = s.contactRepo.GetContactByPhone(ctx, hash, e164)
		if err != nil {
			return model.Contact{}, fmt.Errorf("contact %s created concurrently: %w", e164, err)
		}
		return contact, nil
	}
	if err != nil {
		return model.Contact{}, err
	}
	return contact, nil
}

// ResolveConversation finds the conversation of a contact or creates it, filling the provider id when known
func (s *Service) ResolveConversation(
	ctx context.Context, contactID int64, externalID string,
) (model.Conversation, error) {
	conv, err := s.conversationRepo.GetConversationByContact(ctx, contactID)
	if err == nil {
		if externalID != "" && !conv.ExternalID.Valid {
			err := s.conversationRepo.SetConversationExternalID(ctx, conv.ID, externalID)
			if err != nil && !errors.Is(err, repository.ErrDuplicate) {
				return model.Conversation{}, err
			}
			if err == nil {
				conv.ExternalID = sql.NullString{Valid: true, String: externalID}
			}
		}
		return conv, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Conversation{}, err
	}

	conv = model.Conversation{ContactID: contactID}
	if externalID != "" {
		conv.ExternalID = sql.NullString{Valid: true, String: externalID}
	}

	conv.ID, err = s.conversationRepo.InsertConversation(ctx, conv)
	if errors.Is(err, repository.ErrDuplicate) {
		conv, err = s.conversationRepo.GetConversationByContact(ctx, contactID)
		if err != nil {
			return model.Conversation{}, fmt.Errorf("conversation of contact %d created concurrently: %w", contactID, err)
		}
		return conv, nil
	}
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func replyStatus(kind bounce.ReplyKind) model.MembershipStatus {
	switch kind {
	case bounce.ReplyOptOut:
		return model.MembershipStatusOptedOut
	case bounce.ReplyNegative:
		return model.MembershipStatusRepliedNegative
	default:
		return model.MembershipStatusRepliedPositive
	}
}

func (s *Service) handleInboundText(ctx context.Context, contact model.Contact, activity model.Activity) error {
	logger := otellib.Extract(ctx)

	switch {
	case bounce.IsOptOut(activity.Body) && !contact.SMSOptOut:
		logger.Info("contact opted out", zap.Int64("contact_id", contact.ID))
		if err := s.contactRepo.SetSMSOptOut(ctx, contact.ID, true, activity.OccurredAt); err != nil {
			return err
		}
	case bounce.IsOptIn(activity.Body) && contact.SMSOptOut:
		logger.Info("contact opted in", zap.Int64("contact_id", contact.ID))
		if err := s.contactRepo.SetSMSOptOut(ctx, contact.ID, false, activity.OccurredAt); err != nil {
			return err
		}
	}

	since := activity.OccurredAt.Add(-s.replyWindow)
	m, err := s.membershipRepo.FindLatestSentForContact(ctx, contact.ID, since)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	status := replyStatus(bounce.ClassifyReply(activity.Body))
	if !model.CanTransition(m.Status, status) {
		return nil
	}
	return s.membershipRepo.MarkMembershipReplied(ctx, m.ID, status, activity.ID)
}
