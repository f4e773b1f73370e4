package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type activityRepo struct {
	s *Store
}

func (r *activityRepo) GetActivity(ctx context.Context, id int64) (model.Activity, error) {
	defer r.s.lockRead(ctx)()

	a, ok := r.s.data.activities[id]
	if !ok {
		return model.Activity{}, repository.ErrNotFound
	}
	return a, nil
}

func (r *activityRepo) GetActivityByExternalID(ctx context.Context, externalID string) (model.Activity, error) {
	defer r.s.lockRead(ctx)()

	for _, a := range r.s.data.activities {
		if a.ExternalID == externalID {
			return a, nil
		}
	}
	return model.Activity{}, repository.ErrNotFound
}

func (r *activityRepo) ListActivitiesByConversation(
	ctx context.Context, conversationID int64, limit int64,
) ([]model.Activity, error) {
	defer r.s.lockRead(ctx)()

	var result []model.Activity
	for _, a := range r.s.data.activities {
		if a.ConversationID.Valid && a.ConversationID.Int64 == conversationID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.After(result[j].OccurredAt)
		}
		return result[i].ID > result[j].ID
	})
	return page(result, 0, limit), nil
}

func (r *activityRepo) ListFailedOutbound(ctx context.Context, from, to time.Time) ([]model.Activity, error) {
	defer r.s.lockRead(ctx)()

	var result []model.Activity
	for _, a := range r.s.data.activities {
		if a.Kind != model.ActivityKindMessage || a.Direction != model.DirectionOutbound {
			continue
		}
		if !model.IsFailedMessageStatus(a.Status) {
			continue
		}
		if a.OccurredAt.Before(from) || !a.OccurredAt.Before(to) {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.Before(result[j].OccurredAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *activityRepo) CountOrphanedActivities(ctx context.Context) (repository.OrphanCount, error) {
	defer r.s.lockRead(ctx)()

	var result repository.OrphanCount
	for _, a := range r.s.data.activities {
		if !a.ConversationID.Valid {
			result.MissingConversation++
		}
		if !a.ContactID.Valid {
			result.MissingContact++
		}
	}
	return result, nil
}

func (r *activityRepo) InsertActivity(ctx context.Context, activity model.Activity) (int64, error) {
	defer r.s.lockWrite(ctx)()

	for _, a := range r.s.data.activities {
		if a.ExternalID == activity.ExternalID {
			return 0, repository.ErrDuplicate
		}
	}

	activity.ID = r.s.nextID()
	activity.CreatedAt = r.s.now()
	activity.UpdatedAt = activity.CreatedAt
	r.s.data.activities[activity.ID] = activity
	return activity.ID, nil
}

func (r *activityRepo) UpdateActivity(ctx context.Context, activity model.Activity) error {
	defer r.s.lockWrite(ctx)()

	old, ok := r.s.data.activities[activity.ID]
	if !ok {
		return nil
	}
	old.Status = activity.Status
	old.Body = activity.Body
	old.Metadata = activity.Metadata
	old.ContactID = activity.ContactID
	old.ConversationID = activity.ConversationID
	old.UpdatedAt = r.s.now()
	r.s.data.activities[activity.ID] = old
	return nil
}
