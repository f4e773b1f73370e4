package repository

import (
	"context"
	"time"

	"github.com/smsflow/smsflow/model"
)

// Conversation ...
type Conversation interface {
	GetConversation(ctx context.Context, id int64) (model.Conversation, error)
	GetConversationByContact(ctx context.Context, contactID int64) (model.Conversation, error)
	GetConversationByExternalID(ctx context.Context, externalID string) (model.Conversation, error)

	InsertConversation(ctx context.Context, conv model.Conversation) (int64, error)
	SetConversationExternalID(ctx context.Context, id int64, externalID string) error
	AdvanceWatermark(ctx context.Context, id int64, at time.Time) error
}

type conversationImpl struct {
}

// NewConversation ...
func NewConversation() Conversation {
	return &conversationImpl{}
}

const conversationColumns = `id, contact_id, external_id, last_activity_at, created_at, updated_at`

// GetConversation ...
func (c *conversationImpl) GetConversation(ctx context.Context, id int64) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversation WHERE id = ?`
	var result model.Conversation
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// GetConversationByContact ...
func (c *conversationImpl) GetConversationByContact(ctx context.Context, contactID int64) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversation WHERE contact_id = ?`
	var result model.Conversation
	err := GetReadonly(ctx).GetContext(ctx, &result, query, contactID)
	return result, mapError(err)
}

// GetConversationByExternalID ...
func (c *conversationImpl) GetConversationByExternalID(
	ctx context.Context, externalID string,
) (model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversation WHERE external_id = ?`
	var result model.Conversation
	err := GetReadonly(ctx).GetContext(ctx, &result, query, externalID)
	return result, mapError(err)
}

// InsertConversation returns ErrDuplicate when the contact already has a conversation
func (c *conversationImpl) InsertConversation(ctx context.Context, conv model.Conversation) (int64, error) {
	query := `
INSERT INTO conversation (contact_id, external_id, last_activity_at)
VALUES (:contact_id, :external_id, :last_activity_at)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, conv)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// SetConversationExternalID only fills an empty external id
func (c *conversationImpl) SetConversationExternalID(ctx context.Context, id int64, externalID string) error {
	query := `UPDATE conversation SET external_id = ? WHERE id = ? AND external_id IS NULL`
	_, err := GetTx(ctx).ExecContext(ctx, query, externalID, id)
	return mapError(err)
}

// AdvanceWatermark never moves last_activity_at backwards
func (c *conversationImpl) AdvanceWatermark(ctx context.Context, id int64, at time.Time) error {
	query := `
UPDATE conversation SET last_activity_at = GREATEST(COALESCE(last_activity_at, ?), ?)
WHERE id = ?`
	_, err := GetTx(ctx).ExecContext(ctx, query, at, at, id)
	return err
}
