package model

import (
	"database/sql"
	"time"
)

// Campaign ...
type Campaign struct {
	ID     int64          `db:"id"`
	Name   string         `db:"name"`
	Type   CampaignType   `db:"type"`
	Status CampaignStatus `db:"status"`

	TemplateA   string         `db:"template_a"`
	TemplateB   sql.NullString `db:"template_b"`
	SenderPhone sql.NullString `db:"sender_phone"`
	DailyLimit  int64          `db:"daily_limit"`

	CheckBusinessHours bool         `db:"check_business_hours"`
	BusinessHoursStart string       `db:"business_hours_start"` // HH:MM
	BusinessHoursEnd   string       `db:"business_hours_end"`   // HH:MM
	BusinessDays       BusinessDays `db:"business_days"`
	Timezone           string       `db:"timezone"`

	IsRecurring        bool           `db:"is_recurring"`
	RecurrenceType     RecurrenceType `db:"recurrence_type"`
	RecurrenceInterval int64          `db:"recurrence_interval"`
	RecurrenceDays     WeekdayList    `db:"recurrence_days"`
	RecurrenceEndDate  sql.NullTime   `db:"recurrence_end_date"`

	ScheduledAt sql.NullTime `db:"scheduled_at"` // always UTC
	NextRunAt   sql.NullTime `db:"next_run_at"`  // always UTC

	Archived   bool         `db:"archived"`
	ArchivedAt sql.NullTime `db:"archived_at"`

	ParentCampaignID sql.NullInt64 `db:"parent_campaign_id"`

	WinnerVariant    NullVariant     `db:"winner_variant"`
	WinnerDeclaredAt sql.NullTime    `db:"winner_declared_at"`
	WinnerPValue     sql.NullFloat64 `db:"winner_p_value"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CampaignType ...
type CampaignType string

const (
	// CampaignTypeBlast sends template A to every member
	CampaignTypeBlast CampaignType = "blast"

	// CampaignTypeABTest splits members between template A and B
	CampaignTypeABTest CampaignType = "ab_test"

	// CampaignTypeAutomated ...
	CampaignTypeAutomated CampaignType = "automated"
)

// CampaignStatus ...
type CampaignStatus string

const (
	// CampaignStatusDraft ...
	CampaignStatusDraft CampaignStatus = "draft"

	// CampaignStatusScheduled ...
	CampaignStatusScheduled CampaignStatus = "scheduled"

	// CampaignStatusRunning ...
	CampaignStatusRunning CampaignStatus = "running"

	// CampaignStatusPaused ...
	CampaignStatusPaused CampaignStatus = "paused"

	// CampaignStatusComplete ...
	CampaignStatusComplete CampaignStatus = "complete"

	// CampaignStatusFailed ...
	CampaignStatusFailed CampaignStatus = "failed"
)

// RecurrenceType ...
type RecurrenceType string

const (
	// RecurrenceTypeNone ...
	RecurrenceTypeNone RecurrenceType = ""

	// RecurrenceTypeDaily ...
	RecurrenceTypeDaily RecurrenceType = "daily"

	// RecurrenceTypeWeekly ...
	RecurrenceTypeWeekly RecurrenceType = "weekly"
)

// IsABTest ...
func (c Campaign) IsABTest() bool {
	return c.Type == CampaignTypeABTest
}

// HasWinner ...
func (c Campaign) HasWinner() bool {
	return c.WinnerVariant.Valid
}

// Template returns the message template for the variant
func (c Campaign) Template(v Variant) string {
	if v == VariantB && c.TemplateB.Valid {
		return c.TemplateB.String
	}
	return c.TemplateA
}
