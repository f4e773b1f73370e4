// Package schedule manages the lifecycle of one-time and recurring campaigns.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OverdueAfter is how long a scheduled campaign may stay past due before cleanup fails it
const OverdueAfter = 24 * time.Hour

// Service ...
type Service struct {
	provider        repository.Provider
	campaignRepo    repository.Campaign
	membershipRepo  repository.Membership
	timer           timer.Timer
	defaultTimezone string
}

// NewService ...
func NewService(
	provider repository.Provider,
	campaignRepo repository.Campaign,
	membershipRepo repository.Membership,
	t timer.Timer,
	defaultTimezone string,
) *Service {
	return &Service{
		provider:        provider,
		campaignRepo:    campaignRepo,
		membershipRepo:  membershipRepo,
		timer:           t,
		defaultTimezone: defaultTimezone,
	}
}

// resolveTimezone picks tz, then the campaign timezone, then the configured default
func (s *Service) resolveTimezone(tz string, c model.Campaign) (string, *time.Location, error) {
	name := strings.TrimSpace(tz)
	if name == "" {
		name = c.Timezone
	}
	if name == "" {
		name = s.defaultTimezone
	}
	if name == "" {
		name = "UTC"
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", nil, apperr.New(apperr.CodeInvalidTimezone, "invalid timezone %q", name)
	}
	return name, loc, nil
}

func (s *Service) getCampaign(ctx context.Context, id int64) (model.Campaign, error) {
	c, err := s.campaignRepo.GetCampaign(s.provider.Readonly(ctx), id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Campaign{}, apperr.New(apperr.CodeNotFound, "campaign %d not found", id)
	}
	return c, err
}

// Validate checks the configuration invariants of a campaign
func Validate(c model.Campaign) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.New(apperr.CodeInvalidCampaign, "campaign name is required")
	}
	if strings.TrimSpace(c.TemplateA) == "" {
		return apperr.New(apperr.CodeInvalidCampaign, "template A is required")
	}

	switch c.Type {
	case model.CampaignTypeBlast, model.CampaignTypeAutomated:
	case model.CampaignTypeABTest:
		if !c.TemplateB.Valid || strings.TrimSpace(c.TemplateB.String) == "" {
			return apperr.New(apperr.CodeInvalidCampaign, "A/B test campaign requires template B")
		}
	default:
		return apperr.New(apperr.CodeInvalidCampaign, "unknown campaign type %q", c.Type)
	}

	if c.DailyLimit < 0 {
		return apperr.New(apperr.CodeInvalidCampaign, "negative daily limit %d", c.DailyLimit)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return apperr.New(apperr.CodeInvalidTimezone, "invalid timezone %q", c.Timezone)
		}
	}
	if c.BusinessHoursStart != "" || c.BusinessHoursEnd != "" {
		start, okStart := parseHHMM(c.BusinessHoursStart)
		end, okEnd := parseHHMM(c.BusinessHoursEnd)
		if !okStart || !okEnd || start >= end {
			return apperr.New(apperr.CodeInvalidCampaign, "invalid business hours %q-%q",
				c.BusinessHoursStart, c.BusinessHoursEnd)
		}
	}
	if c.IsRecurring && c.RecurrenceType == model.RecurrenceTypeNone {
		return apperr.New(apperr.CodeInvalidRecurrence, "recurring campaign requires a recurrence type")
	}
	return nil
}

func parseHHMM(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Create validates and stores a new draft campaign
func (s *Service) Create(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	c.Status = model.CampaignStatusDraft
	if c.BusinessDays == 0 {
		c.BusinessDays = model.DefaultBusinessDays
	}
	if err := Validate(c); err != nil {
		return model.Campaign{}, err
	}

	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		id, err := s.campaignRepo.InsertCampaign(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	})
	if err != nil {
		return model.Campaign{}, err
	}

	otellib.Extract(ctx).Info("campaign created", zap.Int64("campaign_id", c.ID), zap.String("type", string(c.Type)))
	return c, nil
}

func schedulable(c model.Campaign) error {
	if c.Archived {
		return apperr.New(apperr.CodeInvalidCampaign, "campaign %d is archived", c.ID)
	}
	switch c.Status {
	case model.CampaignStatusDraft, model.CampaignStatusScheduled, model.CampaignStatusPaused:
		return nil
	default:
		return apperr.New(apperr.CodeInvalidCampaign, "campaign %d cannot be scheduled in status %s", c.ID, c.Status)
	}
}

// Schedule sets a one-time run. The calendar fields of at are read as a wall clock time in tz.
func (s *Service) Schedule(ctx context.Context, campaignID int64, at time.Time, tz string) (model.Campaign, error) {
	ctx, span := otellib.StartSpan(ctx, "schedule.Schedule", attribute.Int64("campaign.id", campaignID))
	defer span.End()

	var result model.Campaign
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		c, err := s.getCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if err := schedulable(c); err != nil {
			return err
		}

		name, loc, err := s.resolveTimezone(tz, c)
		if err != nil {
			return err
		}

		runAt := wallClock(at, loc).UTC()
		if !runAt.After(s.timer.Now()) {
			return apperr.New(apperr.CodeScheduleInPast, "scheduled time %s is in the past", runAt.Format(time.RFC3339))
		}

		c.Status = model.CampaignStatusScheduled
		c.Timezone = name
		c.ScheduledAt = sql.NullTime{Valid: true, Time: runAt}
		c.IsRecurring = false
		c.RecurrenceType = model.RecurrenceTypeNone
		c.NextRunAt = sql.NullTime{}

		if err := s.campaignRepo.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return model.Campaign{}, err
	}

	otellib.Extract(ctx).Info("campaign scheduled",
		zap.Int64("campaign_id", result.ID),
		zap.Time("scheduled_at", result.ScheduledAt.Time),
		zap.String("timezone", result.Timezone),
	)
	return result, nil
}

// CreateRecurring turns a campaign into a recurring one starting at start (wall clock in tz)
func (s *Service) CreateRecurring(
	ctx context.Context, campaignID int64, start time.Time, pattern Recurrence, tz string,
) (model.Campaign, error) {
	ctx, span := otellib.StartSpan(ctx, "schedule.CreateRecurring", attribute.Int64("campaign.id", campaignID))
	defer span.End()

	var result model.Campaign
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		c, err := s.getCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if err := schedulable(c); err != nil {
			return err
		}

		name, loc, err := s.resolveTimezone(tz, c)
		if err != nil {
			return err
		}

		now := s.timer.Now()
		if err := pattern.Validate(now, loc); err != nil {
			return err
		}
		pattern.DaysOfWeek = pattern.DaysOfWeek.Normalize()

		startAt := wallClock(start, loc)
		nextRun, ok := pattern.first(startAt, now, loc)
		if !ok {
			return apperr.New(apperr.CodeInvalidRecurrence, "no occurrence before the end date")
		}

		c.Status = model.CampaignStatusScheduled
		c.Timezone = name
		c.IsRecurring = true
		c.RecurrenceType = pattern.Type
		c.RecurrenceInterval = int64(pattern.interval())
		c.RecurrenceDays = pattern.DaysOfWeek
		c.RecurrenceEndDate = sql.NullTime{}
		if !pattern.EndDate.IsZero() {
			y, m, d := pattern.EndDate.Date()
			c.RecurrenceEndDate = sql.NullTime{Valid: true, Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
		}
		c.ScheduledAt = sql.NullTime{Valid: true, Time: startAt.UTC()}
		c.NextRunAt = sql.NullTime{Valid: true, Time: nextRun}

		if err := s.campaignRepo.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return model.Campaign{}, err
	}

	otellib.Extract(ctx).Info("recurring campaign created",
		zap.Int64("campaign_id", result.ID),
		zap.String("recurrence", string(result.RecurrenceType)),
		zap.Time("next_run_at", result.NextRunAt.Time),
	)
	return result, nil
}

// GetReadyToRun returns the campaigns due now
func (s *Service) GetReadyToRun(ctx context.Context) ([]model.Campaign, error) {
	return s.campaignRepo.ListReadyToRun(s.provider.Readonly(ctx), s.timer.Now())
}

// Execute flips a campaign to running. A recurring campaign moves to its next occurrence,
// a one-time campaign drops its scheduled time.
func (s *Service) Execute(ctx context.Context, campaignID int64) (model.Campaign, error) {
	ctx, span := otellib.StartSpan(ctx, "schedule.Execute", attribute.Int64("campaign.id", campaignID))
	defer span.End()

	var result model.Campaign
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		c, err := s.getCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if c.Archived {
			return apperr.New(apperr.CodeInvalidCampaign, "campaign %d is archived", c.ID)
		}

		c.Status = model.CampaignStatusRunning
		if c.IsRecurring {
			_, loc, err := s.resolveTimezone("", c)
			if err != nil {
				return err
			}
			c.NextRunAt = s.advance(c, loc)
		} else {
			c.ScheduledAt = sql.NullTime{}
		}

		if err := s.campaignRepo.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return model.Campaign{}, err
	}

	logger := otellib.Extract(ctx).With(zap.Int64("campaign_id", result.ID))
	if result.IsRecurring && result.NextRunAt.Valid {
		logger.Info("recurring campaign started", zap.Time("next_run_at", result.NextRunAt.Time))
	} else if result.IsRecurring {
		logger.Info("recurring campaign started its last occurrence")
	} else {
		logger.Info("campaign started")
	}
	return result, nil
}

// advance returns the first occurrence after the current one that is in the future
func (s *Service) advance(c model.Campaign, loc *time.Location) sql.NullTime {
	pattern := recurrenceOf(c)

	prev := s.timer.Now()
	if c.NextRunAt.Valid {
		prev = c.NextRunAt.Time
	}

	now := s.timer.Now()
	for {
		next, ok := pattern.next(prev, loc)
		if !ok {
			return sql.NullTime{}
		}
		if next.After(now) {
			return sql.NullTime{Valid: true, Time: next}
		}
		prev = next
	}
}

// RunResult ...
type RunResult struct {
	Executed []int64
	Errors   []string
}

// RunScheduled executes every campaign that is due
func (s *Service) RunScheduled(ctx context.Context) (RunResult, error) {
	ctx, span := otellib.StartSpan(ctx, "schedule.RunScheduled")
	defer span.End()

	campaigns, err := s.GetReadyToRun(ctx)
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	for _, c := range campaigns {
		if _, err := s.Execute(ctx, c.ID); err != nil {
			otellib.Extract(ctx).Error("execute scheduled campaign", zap.Int64("campaign_id", c.ID), zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Executed = append(result.Executed, c.ID)
	}
	return result, nil
}

// DuplicateParams ...
type DuplicateParams struct {
	Name string

	// ScheduleAt schedules the copy when not zero, read as wall clock time in Timezone
	ScheduleAt time.Time
	Timezone   string

	// CopyMembers enrolls the contacts of the source campaign as pending memberships
	CopyMembers bool
}

// Duplicate copies the configuration of a campaign into a new draft campaign
func (s *Service) Duplicate(ctx context.Context, campaignID int64, params DuplicateParams) (model.Campaign, error) {
	ctx, span := otellib.StartSpan(ctx, "schedule.Duplicate", attribute.Int64("campaign.id", campaignID))
	defer span.End()

	var result model.Campaign
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		src, err := s.getCampaign(ctx, campaignID)
		if err != nil {
			return err
		}

		c := copyConfig(src)
		c.Name = strings.TrimSpace(params.Name)
		if c.Name == "" {
			c.Name = src.Name + " (copy)"
		}

		id, err := s.campaignRepo.InsertCampaign(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id

		if params.CopyMembers {
			if err := s.copyMembers(ctx, src.ID, id); err != nil {
				return err
			}
		}

		if !params.ScheduleAt.IsZero() {
			c, err = s.Schedule(ctx, id, params.ScheduleAt, params.Timezone)
			if err != nil {
				return err
			}
		}
		result = c
		return nil
	})
	if err != nil {
		return model.Campaign{}, err
	}

	otellib.Extract(ctx).Info("campaign duplicated",
		zap.Int64("source_campaign_id", campaignID),
		zap.Int64("campaign_id", result.ID),
	)
	return result, nil
}

func copyConfig(src model.Campaign) model.Campaign {
	return model.Campaign{
		Name:        src.Name,
		Type:        src.Type,
		Status:      model.CampaignStatusDraft,
		TemplateA:   src.TemplateA,
		TemplateB:   src.TemplateB,
		SenderPhone: src.SenderPhone,
		DailyLimit:  src.DailyLimit,

		CheckBusinessHours: src.CheckBusinessHours,
		BusinessHoursStart: src.BusinessHoursStart,
		BusinessHoursEnd:   src.BusinessHoursEnd,
		BusinessDays:       src.BusinessDays,
		Timezone:           src.Timezone,

		IsRecurring:        src.IsRecurring,
		RecurrenceType:     src.RecurrenceType,
		RecurrenceInterval: src.RecurrenceInterval,
		RecurrenceDays:     src.RecurrenceDays,
		RecurrenceEndDate:  src.RecurrenceEndDate,

		ParentCampaignID: sql.NullInt64{Valid: true, Int64: src.ID},
	}
}

func (s *Service) copyMembers(ctx context.Context, srcID int64, dstID int64) error {
	contactIDs, err := s.membershipRepo.ListCampaignContactIDs(ctx, srcID)
	if err != nil {
		return err
	}
	for _, contactID := range contactIDs {
		_, err := s.membershipRepo.InsertMembership(ctx, model.Membership{
			CampaignID: dstID,
			ContactID:  contactID,
			Status:     model.MembershipStatusPending,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Archive ...
func (s *Service) Archive(ctx context.Context, campaignID int64) (model.Campaign, error) {
	return s.update(ctx, campaignID, func(c *model.Campaign) error {
		if c.Archived {
			return nil
		}
		c.Archived = true
		c.ArchivedAt = sql.NullTime{Valid: true, Time: s.timer.Now()}
		return nil
	})
}

// Unarchive ...
func (s *Service) Unarchive(ctx context.Context, campaignID int64) (model.Campaign, error) {
	return s.update(ctx, campaignID, func(c *model.Campaign) error {
		c.Archived = false
		c.ArchivedAt = sql.NullTime{}
		return nil
	})
}

// Pause stops a running or scheduled campaign from being processed
func (s *Service) Pause(ctx context.Context, campaignID int64) (model.Campaign, error) {
	return s.update(ctx, campaignID, func(c *model.Campaign) error {
		switch c.Status {
		case model.CampaignStatusRunning, model.CampaignStatusScheduled:
			c.Status = model.CampaignStatusPaused
			return nil
		case model.CampaignStatusPaused:
			return nil
		default:
			return apperr.New(apperr.CodeInvalidCampaign, "campaign %d cannot be paused in status %s", c.ID, c.Status)
		}
	})
}

// Resume puts a paused campaign back to scheduled when its run time is still ahead, to running otherwise
func (s *Service) Resume(ctx context.Context, campaignID int64) (model.Campaign, error) {
	return s.update(ctx, campaignID, func(c *model.Campaign) error {
		if c.Status != model.CampaignStatusPaused {
			return apperr.New(apperr.CodeInvalidCampaign, "campaign %d is not paused", c.ID)
		}

		now := s.timer.Now()
		switch {
		case c.IsRecurring && c.NextRunAt.Valid && c.NextRunAt.Time.After(now):
			c.Status = model.CampaignStatusScheduled
		case !c.IsRecurring && c.ScheduledAt.Valid && c.ScheduledAt.Time.After(now):
			c.Status = model.CampaignStatusScheduled
		default:
			c.Status = model.CampaignStatusRunning
		}
		return nil
	})
}

func (s *Service) update(ctx context.Context, campaignID int64, fn func(c *model.Campaign) error) (model.Campaign, error) {
	var result model.Campaign
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		c, err := s.getCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		if err := s.campaignRepo.UpdateCampaign(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	return result, err
}

// CleanupOverdue fails one-time campaigns still scheduled more than OverdueAfter past due
func (s *Service) CleanupOverdue(ctx context.Context) ([]int64, error) {
	ctx, span := otellib.StartSpan(ctx, "schedule.CleanupOverdue")
	defer span.End()

	before := s.timer.Now().Add(-OverdueAfter)

	var failed []int64
	err := s.provider.Transact(ctx, func(ctx context.Context) error {
		campaigns, err := s.campaignRepo.ListOverdueScheduled(ctx, before)
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			if err := s.campaignRepo.UpdateCampaignStatus(ctx, c.ID, model.CampaignStatusFailed); err != nil {
				return err
			}
			failed = append(failed, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range failed {
		otellib.Extract(ctx).Warn("overdue scheduled campaign marked failed", zap.Int64("campaign_id", id))
	}
	return failed, nil
}
