package repository

import (
	"context"
	"time"

	"github.com/smsflow/smsflow/model"
)

// Campaign ...
type Campaign interface {
	GetCampaign(ctx context.Context, id int64) (model.Campaign, error)
	ListCampaigns(ctx context.Context, params ListCampaignsParams) ([]model.Campaign, error)
	ListCampaignsByStatus(ctx context.Context, status model.CampaignStatus) ([]model.Campaign, error)
	ListReadyToRun(ctx context.Context, now time.Time) ([]model.Campaign, error)
	ListOverdueScheduled(ctx context.Context, before time.Time) ([]model.Campaign, error)
	ListUndecidedABTests(ctx context.Context) ([]model.Campaign, error)

	InsertCampaign(ctx context.Context, campaign model.Campaign) (int64, error)
	UpdateCampaign(ctx context.Context, campaign model.Campaign) error
	UpdateCampaignStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	SetCampaignWinner(ctx context.Context, id int64, variant model.Variant, pValue float64, at time.Time) error
}

// ListCampaignsParams ...
type ListCampaignsParams struct {
	Offset          int64
	Limit           int64
	IncludeArchived bool
}

type campaignImpl struct {
}

// NewCampaign ...
func NewCampaign() Campaign {
	return &campaignImpl{}
}

const campaignColumns = `
	id, name, type, status, template_a, template_b, sender_phone, daily_limit,
	check_business_hours, business_hours_start, business_hours_end, business_days, timezone,
	is_recurring, recurrence_type, recurrence_interval, recurrence_days, recurrence_end_date,
	scheduled_at, next_run_at, archived, archived_at, parent_campaign_id,
	winner_variant, winner_declared_at, winner_p_value, created_at, updated_at
`

// GetCampaign ...
func (c *campaignImpl) GetCampaign(ctx context.Context, id int64) (model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign WHERE id = ?`
	var result model.Campaign
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// ListCampaigns ...
func (c *campaignImpl) ListCampaigns(ctx context.Context, params ListCampaignsParams) ([]model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign
WHERE archived = FALSE OR ?
ORDER BY id DESC LIMIT ? OFFSET ?`
	var result []model.Campaign
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, params.IncludeArchived, params.Limit, params.Offset)
	return result, err
}

// ListCampaignsByStatus ...
func (c *campaignImpl) ListCampaignsByStatus(
	ctx context.Context, status model.CampaignStatus,
) ([]model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign
WHERE status = ? AND archived = FALSE
ORDER BY id`
	var result []model.Campaign
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, status)
	return result, err
}

// ListReadyToRun returns due one-time campaigns and due recurring occurrences
func (c *campaignImpl) ListReadyToRun(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign
WHERE archived = FALSE AND (
	(status = 'scheduled' AND is_recurring = FALSE AND scheduled_at <= ?)
	OR (is_recurring = TRUE AND status IN ('scheduled', 'complete') AND next_run_at <= ?)
)
ORDER BY id`
	var result []model.Campaign
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, now, now)
	return result, err
}

// ListOverdueScheduled ...
func (c *campaignImpl) ListOverdueScheduled(ctx context.Context, before time.Time) ([]model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign
WHERE status = 'scheduled' AND is_recurring = FALSE AND scheduled_at < ?
ORDER BY id`
	var result []model.Campaign
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, before)
	return result, err
}

// ListUndecidedABTests ...
func (c *campaignImpl) ListUndecidedABTests(ctx context.Context) ([]model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaign
WHERE type = 'ab_test' AND winner_variant IS NULL AND status IN ('running', 'paused', 'complete')
ORDER BY id`
	var result []model.Campaign
	err := GetReadonly(ctx).SelectContext(ctx, &result, query)
	return result, err
}

// InsertCampaign ...
func (c *campaignImpl) InsertCampaign(ctx context.Context, campaign model.Campaign) (int64, error) {
	query := `
INSERT INTO campaign (
	name, type, status, template_a, template_b, sender_phone, daily_limit,
	check_business_hours, business_hours_start, business_hours_end, business_days, timezone,
	is_recurring, recurrence_type, recurrence_interval, recurrence_days, recurrence_end_date,
	scheduled_at, next_run_at, archived, archived_at, parent_campaign_id
) VALUES (
	:name, :type, :status, :template_a, :template_b, :sender_phone, :daily_limit,
	:check_business_hours, :business_hours_start, :business_hours_end, :business_days, :timezone,
	:is_recurring, :recurrence_type, :recurrence_interval, :recurrence_days, :recurrence_end_date,
	:scheduled_at, :next_run_at, :archived, :archived_at, :parent_campaign_id
)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, campaign)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// UpdateCampaign writes every mutable column
func (c *campaignImpl) UpdateCampaign(ctx context.Context, campaign model.Campaign) error {
	query := `
UPDATE campaign SET
	name = :name,
	type = :type,
	status = :status,
	template_a = :template_a,
	template_b = :template_b,
	sender_phone = :sender_phone,
	daily_limit = :daily_limit,

	check_business_hours = :check_business_hours,
	business_hours_start = :business_hours_start,
	business_hours_end = :business_hours_end,
	business_days = :business_days,
	timezone = :timezone,

	is_recurring = :is_recurring,
	recurrence_type = :recurrence_type,
	recurrence_interval = :recurrence_interval,
	recurrence_days = :recurrence_days,
	recurrence_end_date = :recurrence_end_date,

	scheduled_at = :scheduled_at,
	next_run_at = :next_run_at,
	archived = :archived,
	archived_at = :archived_at
WHERE id = :id`
	_, err := GetTx(ctx).NamedExecContext(ctx, query, campaign)
	return err
}

// UpdateCampaignStatus ...
func (c *campaignImpl) UpdateCampaignStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	query := `UPDATE campaign SET status = ? WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, status, id)
	return err
}

// SetCampaignWinner is a no-op when a winner was already declared
func (c *campaignImpl) SetCampaignWinner(
	ctx context.Context, id int64, variant model.Variant, pValue float64, at time.Time,
) error {
	query := `
UPDATE campaign SET winner_variant = ?, winner_p_value = ?, winner_declared_at = ?
WHERE id = ? AND winner_variant IS NULL`
	_, err := GetTx(ctx).ExecContext(ctx, query, variant, pValue, at, id)
	return err
}
