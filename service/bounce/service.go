package bounce

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/repository"
	"go.uber.org/zap"
)

const statsPageSize = 1000

// Service applies delivery outcomes to campaign memberships and aggregates them
type Service struct {
	provider       repository.Provider
	membershipRepo repository.Membership
	activityRepo   repository.Activity
}

// NewService ...
func NewService(
	provider repository.Provider,
	membershipRepo repository.Membership,
	activityRepo repository.Activity,
) *Service {
	return &Service{
		provider:       provider,
		membershipRepo: membershipRepo,
		activityRepo:   activityRepo,
	}
}

// ApplyDeliveryStatus moves the membership linked to an outbound message to delivered or failed.
// Must be called inside a transaction. Non terminal statuses and unlinked messages are ignored.
func (s *Service) ApplyDeliveryStatus(ctx context.Context, activity model.Activity) (model.BounceCategory, error) {
	if activity.Direction != model.DirectionOutbound || !model.IsTerminalMessageStatus(activity.Status) {
		return model.BounceNone, nil
	}

	status, ok := MembershipStatusOf(activity.Status)
	if !ok {
		return model.BounceNone, nil
	}
	category := Classify(activity.Status, activity.Metadata.ErrorDetail)

	m, err := s.membershipRepo.GetMembershipBySendActivity(ctx, activity.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return category, nil
	}
	if err != nil {
		return category, err
	}

	if !model.CanTransition(m.Status, status) {
		otellib.Extract(ctx).Debug("ignore membership delivery transition",
			zap.Int64("membership_id", m.ID),
			zap.String("from", string(m.Status)),
			zap.String("to", string(status)),
		)
		return category, nil
	}

	var errMsg sql.NullString
	if status == model.MembershipStatusFailed {
		errMsg = sql.NullString{Valid: true, String: activity.Metadata.ErrorDetail}
	}
	err = s.membershipRepo.UpdateMembershipDelivery(ctx, m.ID, status, errMsg, category)
	return category, err
}

// CampaignStats aggregates the outcomes of every sent membership of a campaign
func (s *Service) CampaignStats(ctx context.Context, campaignID int64) (Stats, error) {
	ctx = s.provider.Readonly(ctx)

	var outcomes []Outcome
	for offset := int64(0); ; offset += statsPageSize {
		members, err := s.membershipRepo.ListMembershipsByCampaign(ctx, campaignID, offset, statsPageSize)
		if err != nil {
			return Stats{}, err
		}
		for _, m := range members {
			if !m.SentAt.Valid {
				continue
			}
			outcomes = append(outcomes, Outcome{
				ContactID:  m.ContactID,
				CampaignID: m.CampaignID,
				At:         m.SentAt.Time,
				Status:     m.Status,
				Category:   m.BounceCategory,
			})
		}
		if len(members) < statsPageSize {
			break
		}
	}

	return *BuildReport(outcomes).Overall, nil
}

// FailureReport aggregates failed outbound messages in [from, to)
func (s *Service) FailureReport(ctx context.Context, from, to time.Time) (Report, error) {
	activities, err := s.activityRepo.ListFailedOutbound(s.provider.Readonly(ctx), from, to)
	if err != nil {
		return Report{}, err
	}

	outcomes := make([]Outcome, 0, len(activities))
	for _, a := range activities {
		category := a.Metadata.BounceCategory
		if category == model.BounceNone {
			category = Classify(a.Status, a.Metadata.ErrorDetail)
		}
		outcomes = append(outcomes, Outcome{
			ContactID:  a.ContactID.Int64,
			CampaignID: a.Metadata.CampaignID,
			At:         a.OccurredAt,
			Status:     model.MembershipStatusFailed,
			Category:   category,
		})
	}
	return BuildReport(outcomes), nil
}

// SuppressionCandidates returns contacts with repeated hard bounces in [from, to)
func (s *Service) SuppressionCandidates(ctx context.Context, from, to time.Time, minHard int64) ([]int64, error) {
	report, err := s.FailureReport(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return report.SuppressionCandidates(minHard), nil
}
