package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type campaignRepo struct {
	s *Store
}

func (r *campaignRepo) filter(fn func(c model.Campaign) bool) []model.Campaign {
	var result []model.Campaign
	for _, c := range r.s.data.campaigns {
		if fn(c) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *campaignRepo) GetCampaign(ctx context.Context, id int64) (model.Campaign, error) {
	defer r.s.lockRead(ctx)()

	c, ok := r.s.data.campaigns[id]
	if !ok {
		return model.Campaign{}, repository.ErrNotFound
	}
	return c, nil
}

func (r *campaignRepo) ListCampaigns(
	ctx context.Context, params repository.ListCampaignsParams,
) ([]model.Campaign, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(c model.Campaign) bool {
		return !c.Archived || params.IncludeArchived
	})
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID > list[j].ID
	})
	return page(list, params.Offset, params.Limit), nil
}

func (r *campaignRepo) ListCampaignsByStatus(
	ctx context.Context, status model.CampaignStatus,
) ([]model.Campaign, error) {
	defer r.s.lockRead(ctx)()

	return r.filter(func(c model.Campaign) bool {
		return c.Status == status && !c.Archived
	}), nil
}

func notAfter(t sql.NullTime, now time.Time) bool {
	return t.Valid && !t.Time.After(now)
}

func (r *campaignRepo) ListReadyToRun(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	defer r.s.lockRead(ctx)()

	return r.filter(func(c model.Campaign) bool {
		if c.Archived {
			return false
		}
		if !c.IsRecurring {
			return c.Status == model.CampaignStatusScheduled && notAfter(c.ScheduledAt, now)
		}
		statusOK := c.Status == model.CampaignStatusScheduled || c.Status == model.CampaignStatusComplete
		return statusOK && notAfter(c.NextRunAt, now)
	}), nil
}

func (r *campaignRepo) ListOverdueScheduled(ctx context.Context, before time.Time) ([]model.Campaign, error) {
	defer r.s.lockRead(ctx)()

	return r.filter(func(c model.Campaign) bool {
		return c.Status == model.CampaignStatusScheduled && !c.IsRecurring &&
			c.ScheduledAt.Valid && c.ScheduledAt.Time.Before(before)
	}), nil
}

func (r *campaignRepo) ListUndecidedABTests(ctx context.Context) ([]model.Campaign, error) {
	defer r.s.lockRead(ctx)()

	return r.filter(func(c model.Campaign) bool {
		if c.Type != model.CampaignTypeABTest || c.WinnerVariant.Valid {
			return false
		}
		switch c.Status {
		case model.CampaignStatusRunning, model.CampaignStatusPaused, model.CampaignStatusComplete:
			return true
		default:
			return false
		}
	}), nil
}

func (r *campaignRepo) InsertCampaign(ctx context.Context, campaign model.Campaign) (int64, error) {
	defer r.s.lockWrite(ctx)()

	campaign.ID = r.s.nextID()
	campaign.WinnerVariant = model.NullVariant{}
	campaign.WinnerDeclaredAt = sql.NullTime{}
	campaign.WinnerPValue = sql.NullFloat64{}
	campaign.CreatedAt = r.s.now()
	campaign.UpdatedAt = campaign.CreatedAt
	r.s.data.campaigns[campaign.ID] = campaign
	return campaign.ID, nil
}

func (r *campaignRepo) UpdateCampaign(ctx context.Context, campaign model.Campaign) error {
	defer r.s.lockWrite(ctx)()

	old, ok := r.s.data.campaigns[campaign.ID]
	if !ok {
		return nil
	}
	campaign.ParentCampaignID = old.ParentCampaignID
	campaign.WinnerVariant = old.WinnerVariant
	campaign.WinnerDeclaredAt = old.WinnerDeclaredAt
	campaign.WinnerPValue = old.WinnerPValue
	campaign.CreatedAt = old.CreatedAt
	campaign.UpdatedAt = r.s.now()
	r.s.data.campaigns[campaign.ID] = campaign
	return nil
}

func (r *campaignRepo) UpdateCampaignStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	defer r.s.lockWrite(ctx)()

	c, ok := r.s.data.campaigns[id]
	if !ok {
		return nil
	}
	c.Status = status
	r.s.data.campaigns[id] = c
	return nil
}

func (r *campaignRepo) SetCampaignWinner(
	ctx context.Context, id int64, variant model.Variant, pValue float64, at time.Time,
) error {
	defer r.s.lockWrite(ctx)()

	c, ok := r.s.data.campaigns[id]
	if !ok || c.WinnerVariant.Valid {
		return nil
	}
	c.WinnerVariant = model.NewNullVariant(variant)
	c.WinnerPValue = sql.NullFloat64{Valid: true, Float64: pValue}
	c.WinnerDeclaredAt = sql.NullTime{Valid: true, Time: at}
	r.s.data.campaigns[id] = c
	return nil
}

func page[T any](list []T, offset, limit int64) []T {
	if offset >= int64(len(list)) {
		return nil
	}
	list = list[offset:]
	if limit < int64(len(list)) {
		list = list[:limit]
	}
	return list
}
