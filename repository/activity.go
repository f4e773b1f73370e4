package repository

import (
	"context"
	"time"

	"github.com/smsflow/smsflow/model"
)

// Activity ...
type Activity interface {
	GetActivity(ctx context.Context, id int64) (model.Activity, error)
	GetActivityByExternalID(ctx context.Context, externalID string) (model.Activity, error)
	ListActivitiesByConversation(ctx context.Context, conversationID int64, limit int64) ([]model.Activity, error)
	ListFailedOutbound(ctx context.Context, from, to time.Time) ([]model.Activity, error)
	CountOrphanedActivities(ctx context.Context) (OrphanCount, error)

	InsertActivity(ctx context.Context, activity model.Activity) (int64, error)
	UpdateActivity(ctx context.Context, activity model.Activity) error
}

// OrphanCount is the number of activities missing a link
type OrphanCount struct {
	MissingConversation int64 `db:"missing_conversation"`
	MissingContact      int64 `db:"missing_contact"`
}

type activityImpl struct {
}

// NewActivity ...
func NewActivity() Activity {
	return &activityImpl{}
}

const activityColumns = `
	id, external_id, kind, direction, status, body, occurred_at, metadata,
	contact_id, conversation_id, created_at, updated_at
`

// GetActivity ...
func (a *activityImpl) GetActivity(ctx context.Context, id int64) (model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activity WHERE id = ?`
	var result model.Activity
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// GetActivityByExternalID ...
func (a *activityImpl) GetActivityByExternalID(ctx context.Context, externalID string) (model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activity WHERE external_id = ?`
	var result model.Activity
	err := GetReadonly(ctx).GetContext(ctx, &result, query, externalID)
	return result, mapError(err)
}

// ListActivitiesByConversation returns the newest activities first
func (a *activityImpl) ListActivitiesByConversation(
	ctx context.Context, conversationID int64, limit int64,
) ([]model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activity
WHERE conversation_id = ?
ORDER BY occurred_at DESC, id DESC LIMIT ?`
	var result []model.Activity
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, conversationID, limit)
	return result, err
}

// ListFailedOutbound returns outbound messages in a failed delivery status in [from, to)
func (a *activityImpl) ListFailedOutbound(ctx context.Context, from, to time.Time) ([]model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activity
WHERE kind = 'message' AND direction = 'outbound'
	AND status IN ('failed', 'undelivered')
	AND occurred_at >= ? AND occurred_at < ?
ORDER BY occurred_at, id`
	var result []model.Activity
	err := GetReadonly(ctx).SelectContext(ctx, &result, query, from, to)
	return result, err
}

// CountOrphanedActivities ...
func (a *activityImpl) CountOrphanedActivities(ctx context.Context) (OrphanCount, error) {
	query := `
SELECT
	COALESCE(SUM(CASE WHEN conversation_id IS NULL THEN 1 ELSE 0 END), 0) AS missing_conversation,
	COALESCE(SUM(CASE WHEN contact_id IS NULL THEN 1 ELSE 0 END), 0) AS missing_contact
FROM activity`
	var result OrphanCount
	err := GetReadonly(ctx).GetContext(ctx, &result, query)
	return result, err
}

// InsertActivity returns ErrDuplicate when the external id already exists
func (a *activityImpl) InsertActivity(ctx context.Context, activity model.Activity) (int64, error) {
	query := `
INSERT INTO activity (
	external_id, kind, direction, status, body, occurred_at, metadata,
	contact_id, conversation_id
) VALUES (
	:external_id, :kind, :direction, :status, :body, :occurred_at, :metadata,
	:contact_id, :conversation_id
)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, activity)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// UpdateActivity writes status, body and metadata of an existing activity
func (a *activityImpl) UpdateActivity(ctx context.Context, activity model.Activity) error {
	query := `
UPDATE activity SET
	status = :status,
	body = :body,
	metadata = :metadata,
	contact_id = :contact_id,
	conversation_id = :conversation_id
WHERE id = :id`
	_, err := GetTx(ctx).NamedExecContext(ctx, query, activity)
	return err
}
