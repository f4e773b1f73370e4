package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type membershipRepo struct {
	s *Store
}

func (r *membershipRepo) filter(fn func(m model.Membership) bool) []model.Membership {
	var result []model.Membership
	for _, m := range r.s.data.memberships {
		if fn(m) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *membershipRepo) GetMembership(ctx context.Context, id int64) (model.Membership, error) {
	defer r.s.lockRead(ctx)()

	m, ok := r.s.data.memberships[id]
	if !ok {
		return model.Membership{}, repository.ErrNotFound
	}
	return m, nil
}

func (r *membershipRepo) ListPendingMemberships(
	ctx context.Context, campaignID int64, limit int64,
) ([]model.Membership, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(m model.Membership) bool {
		return m.CampaignID == campaignID && m.Status == model.MembershipStatusPending
	})
	return page(list, 0, limit), nil
}

func (r *membershipRepo) ListMembershipsByCampaign(
	ctx context.Context, campaignID int64, offset, limit int64,
) ([]model.Membership, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(m model.Membership) bool {
		return m.CampaignID == campaignID
	})
	return page(list, offset, limit), nil
}

func (r *membershipRepo) ListCampaignContactIDs(ctx context.Context, campaignID int64) ([]int64, error) {
	defer r.s.lockRead(ctx)()

	var result []int64
	for _, m := range r.filter(func(m model.Membership) bool { return m.CampaignID == campaignID }) {
		result = append(result, m.ContactID)
	}
	return result, nil
}

func (r *membershipRepo) CountPendingMemberships(ctx context.Context, campaignID int64) (int64, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(m model.Membership) bool {
		return m.CampaignID == campaignID && m.Status == model.MembershipStatusPending
	})
	return int64(len(list)), nil
}

func (r *membershipRepo) CountSentSince(ctx context.Context, campaignID int64, since time.Time) (int64, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(m model.Membership) bool {
		return m.CampaignID == campaignID && m.SentAt.Valid && !m.SentAt.Time.Before(since)
	})
	return int64(len(list)), nil
}

func (r *membershipRepo) GetMembershipBySendActivity(
	ctx context.Context, activityID int64,
) (model.Membership, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(m model.Membership) bool {
		return m.SendActivityID.Valid && m.SendActivityID.Int64 == activityID
	})
	if len(list) == 0 {
		return model.Membership{}, repository.ErrNotFound
	}
	return list[0], nil
}

func (r *membershipRepo) FindLatestSentForContact(
	ctx context.Context, contactID int64, since time.Time,
) (model.Membership, error) {
	defer r.s.lockRead(ctx)()

	list := r.filter(func(m model.Membership) bool {
		if m.ContactID != contactID || !m.SentAt.Valid || m.SentAt.Time.Before(since) {
			return false
		}
		return m.Status == model.MembershipStatusSent || m.Status == model.MembershipStatusDelivered
	})
	if len(list) == 0 {
		return model.Membership{}, repository.ErrNotFound
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].SentAt.Time.Equal(list[j].SentAt.Time) {
			return list[i].SentAt.Time.After(list[j].SentAt.Time)
		}
		return list[i].ID > list[j].ID
	})
	return list[0], nil
}

func (r *membershipRepo) GetVariantStats(ctx context.Context, campaignID int64) ([]repository.VariantStat, error) {
	defer r.s.lockRead(ctx)()

	stats := map[model.Variant]*repository.VariantStat{}
	for _, m := range r.filter(func(m model.Membership) bool { return m.CampaignID == campaignID }) {
		if !m.Variant.Valid || !m.SentAt.Valid || m.Status == model.MembershipStatusFailed {
			continue
		}
		stat, ok := stats[m.Variant.Variant]
		if !ok {
			stat = &repository.VariantStat{Variant: m.Variant.Variant}
			stats[m.Variant.Variant] = stat
		}
		stat.Sent++
		if m.Status == model.MembershipStatusRepliedPositive {
			stat.Positive++
		}
	}

	var result []repository.VariantStat
	for _, v := range []model.Variant{model.VariantA, model.VariantB} {
		if stat, ok := stats[v]; ok {
			result = append(result, *stat)
		}
	}
	return result, nil
}

func (r *membershipRepo) InsertMembership(ctx context.Context, m model.Membership) (int64, error) {
	defer r.s.lockWrite(ctx)()

	for _, existing := range r.s.data.memberships {
		if existing.CampaignID == m.CampaignID && existing.ContactID == m.ContactID {
			return 0, repository.ErrDuplicate
		}
	}

	m.ID = r.s.nextID()
	m.CreatedAt = r.s.now()
	m.UpdatedAt = m.CreatedAt
	r.s.data.memberships[m.ID] = m
	return m.ID, nil
}

func (r *membershipRepo) update(id int64, fn func(m *model.Membership)) {
	m, ok := r.s.data.memberships[id]
	if !ok {
		return
	}
	fn(&m)
	m.UpdatedAt = r.s.now()
	r.s.data.memberships[id] = m
}

func (r *membershipRepo) MarkMembershipSent(
	ctx context.Context, id int64, variant model.Variant, activityID int64, sentAt time.Time,
) error {
	defer r.s.lockWrite(ctx)()

	r.update(id, func(m *model.Membership) {
		if m.Status != model.MembershipStatusPending {
			return
		}
		m.Status = model.MembershipStatusSent
		m.Variant = model.NewNullVariant(variant)
		m.SendActivityID = sql.NullInt64{Valid: true, Int64: activityID}
		m.SentAt = sql.NullTime{Valid: true, Time: sentAt}
		m.ErrorMessage = sql.NullString{}
	})
	return nil
}

func (r *membershipRepo) MarkMembershipFailed(
	ctx context.Context, id int64, variant model.Variant, errMsg string, category model.BounceCategory, at time.Time,
) error {
	defer r.s.lockWrite(ctx)()

	r.update(id, func(m *model.Membership) {
		if m.Status != model.MembershipStatusPending {
			return
		}
		m.Status = model.MembershipStatusFailed
		m.Variant = model.NewNullVariant(variant)
		m.ErrorMessage = sql.NullString{Valid: true, String: errMsg}
		m.BounceCategory = category
		m.SentAt = sql.NullTime{Valid: true, Time: at}
	})
	return nil
}

func (r *membershipRepo) UpdateMembershipDelivery(
	ctx context.Context, id int64, status model.MembershipStatus,
	errMsg sql.NullString, category model.BounceCategory,
) error {
	defer r.s.lockWrite(ctx)()

	r.update(id, func(m *model.Membership) {
		m.Status = status
		m.ErrorMessage = errMsg
		m.BounceCategory = category
	})
	return nil
}

func (r *membershipRepo) MarkMembershipReplied(
	ctx context.Context, id int64, status model.MembershipStatus, replyActivityID int64,
) error {
	defer r.s.lockWrite(ctx)()

	r.update(id, func(m *model.Membership) {
		m.Status = status
		m.ReplyActivityID = sql.NullInt64{Valid: true, Int64: replyActivityID}
	})
	return nil
}

func (r *membershipRepo) BulkUpdateMembershipStatus(
	ctx context.Context, ids []int64, status model.MembershipStatus,
) error {
	defer r.s.lockWrite(ctx)()

	for _, id := range ids {
		r.update(id, func(m *model.Membership) {
			m.Status = status
		})
	}
	return nil
}
