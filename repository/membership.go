package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smsflow/smsflow/model"
)

// Membership ...
type Membership interface {
	GetMembership(ctx context.Context, id int64) (model.Membership, error)
	ListPendingMemberships(ctx context.Context, campaignID int64, limit int64) ([]model.Membership, error)
	ListMembershipsByCampaign(ctx context.Context, campaignID int64, offset, limit int64) ([]model.Membership, error)
	ListCampaignContactIDs(ctx context.Context, campaignID int64) ([]int64, error)
	CountPendingMemberships(ctx context.Context, campaignID int64) (int64, error)
	CountSentSince(ctx context.Context, campaignID int64, since time.Time) (int64, error)
	GetMembershipBySendActivity(ctx context.Context, activityID int64) (model.Membership, error)
	FindLatestSentForContact(ctx context.Context, contactID int64, since time.Time) (model.Membership, error)
	GetVariantStats(ctx context.Context, campaignID int64) ([]VariantStat, error)

	InsertMembership(ctx context.Context, m model.Membership) (int64, error)
	MarkMembershipSent(ctx context.Context, id int64, variant model.Variant, activityID int64, sentAt time.Time) error
	MarkMembershipFailed(ctx context.Context, id int64, variant model.Variant, errMsg string, category model.BounceCategory, at time.Time) error
	UpdateMembershipDelivery(ctx context.Context, id int64, status model.MembershipStatus, errMsg sql.NullString, category model.BounceCategory) error
	MarkMembershipReplied(ctx context.Context, id int64, status model.MembershipStatus, replyActivityID int64) error
	BulkUpdateMembershipStatus(ctx context.Context, ids []int64, status model.MembershipStatus) error
}

// VariantStat is the per-variant (sent, positive reply) count of an A/B campaign
type VariantStat struct {
	Variant  model.Variant `db:"variant"`
	Sent     int64         `db:"sent"`
	Positive int64         `db:"positive"`
}

type membershipImpl struct {
}

// NewMembership ...
func NewMembership() Membership {
	return &membershipImpl{}
}

const membershipColumns = `
	id, campaign_id, contact_id, status, variant, sent_at, error_message, bounce_category,
	send_activity_id, reply_activity_id, created_at, updated_at
`

// GetMembership ...
func (m *membershipImpl) GetMembership(ctx context.Context, id int64) (model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM campaign_membership WHERE id = ?`
	var result model.Membership
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// ListPendingMemberships ...
func (m *membershipImpl) ListPendingMemberships(
	ctx context.Context, campaignID int64, limit int64,
) ([]model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM campaign_membership
WHERE campaign_id = ? AND status = 'pending'
ORDER BY id LIMIT ?`
	var result []model.Membership
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, campaignID, limit)
	return result, err
}

// ListMembershipsByCampaign ...
func (m *membershipImpl) ListMembershipsByCampaign(
	ctx context.Context, campaignID int64, offset, limit int64,
) ([]model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM campaign_membership
WHERE campaign_id = ?
ORDER BY id LIMIT ? OFFSET ?`
	var result []model.Membership
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, campaignID, limit, offset)
	return result, err
}

// ListCampaignContactIDs ...
func (m *membershipImpl) ListCampaignContactIDs(ctx context.Context, campaignID int64) ([]int64, error) {
	query := `SELECT contact_id FROM campaign_membership WHERE campaign_id = ? ORDER BY id`
	var result []int64
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, campaignID)
	return result, err
}

// CountPendingMemberships ...
func (m *membershipImpl) CountPendingMemberships(ctx context.Context, campaignID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM campaign_membership WHERE campaign_id = ? AND status = 'pending'`
	var count int64
	err := GetReadonly(ctx).GetContext(ctx, &count, query, campaignID)
	return count, err
}

// CountSentSince counts send attempts (successful or failed) since the given instant
func (m *membershipImpl) CountSentSince(ctx context.Context, campaignID int64, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM campaign_membership WHERE campaign_id = ? AND sent_at >= ?`
	var count int64
	err := GetReadonly(ctx).GetContext(ctx, &count, query, campaignID, since)
	return count, err
}

// GetMembershipBySendActivity ...
func (m *membershipImpl) GetMembershipBySendActivity(ctx context.Context, activityID int64) (model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM campaign_membership WHERE send_activity_id = ?`
	var result model.Membership
	err := GetReadonly(ctx).GetContext(ctx, &result, query, activityID)
	return result, mapError(err)
}

// FindLatestSentForContact ...
func (m *membershipImpl) FindLatestSentForContact(
	ctx context.Context, contactID int64, since time.Time,
) (model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM campaign_membership
WHERE contact_id = ? AND status IN ('sent', 'delivered') AND sent_at >= ?
ORDER BY sent_at DESC, id DESC LIMIT 1`
	var result model.Membership
	err := GetReadonly(ctx).GetContext(ctx, &result, query, contactID, since)
	return result, mapError(err)
}

// GetVariantStats ...
func (m *membershipImpl) GetVariantStats(ctx context.Context, campaignID int64) ([]VariantStat, error) {
	query := `
SELECT variant,
	COUNT(*) AS sent,
	SUM(CASE WHEN status = 'replied_positive' THEN 1 ELSE 0 END) AS positive
FROM campaign_membership
WHERE campaign_id = ? AND variant IS NOT NULL AND sent_at IS NOT NULL AND status <> 'failed'
GROUP BY variant`
	var result []VariantStat
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, campaignID)
	return result, err
}

// InsertMembership returns ErrDuplicate when the contact is already a member
func (m *membershipImpl) InsertMembership(ctx context.Context, membership model.Membership) (int64, error) {
	query := `
INSERT INTO campaign_membership (campaign_id, contact_id, status)
VALUES (:campaign_id, :contact_id, :status)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, membership)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// MarkMembershipSent ...
func (m *membershipImpl) MarkMembershipSent(
	ctx context.Context, id int64, variant model.Variant, activityID int64, sentAt time.Time,
) error {
	query := `
UPDATE campaign_membership
SET status = 'sent', variant = ?, send_activity_id = ?, sent_at = ?, error_message = NULL
WHERE id = ? AND status = 'pending'`
	_, err := GetTx(ctx).ExecContext(ctx, query, variant, activityID, sentAt, id)
	return err
}

// MarkMembershipFailed records a provider-reported send failure
func (m *membershipImpl) MarkMembershipFailed(
	ctx context.Context, id int64, variant model.Variant, errMsg string, category model.BounceCategory, at time.Time,
) error {
	query := `
UPDATE campaign_membership
SET status = 'failed', variant = ?, error_message = ?, bounce_category = ?, sent_at = ?
WHERE id = ? AND status = 'pending'`
	_, err := GetTx(ctx).ExecContext(ctx, query, variant, errMsg, category, at, id)
	return err
}

// UpdateMembershipDelivery ...
func (m *membershipImpl) UpdateMembershipDelivery(
	ctx context.Context, id int64, status model.MembershipStatus,
	errMsg sql.NullString, category model.BounceCategory,
) error {
	query := `
UPDATE campaign_membership SET status = ?, error_message = ?, bounce_category = ?
WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, status, errMsg, category, id)
	return err
}

// MarkMembershipReplied ...
func (m *membershipImpl) MarkMembershipReplied(
	ctx context.Context, id int64, status model.MembershipStatus, replyActivityID int64,
) error {
	query := `UPDATE campaign_membership SET status = ?, reply_activity_id = ? WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, status, replyActivityID, id)
	return err
}

// BulkUpdateMembershipStatus ...
func (m *membershipImpl) BulkUpdateMembershipStatus(
	ctx context.Context, ids []int64, status model.MembershipStatus,
) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE campaign_membership SET status = ? WHERE id IN (?)`, status, ids)
	if err != nil {
		return err
	}
	_, err = GetTx(ctx).ExecContext(ctx, query, args...)
	return err
}
