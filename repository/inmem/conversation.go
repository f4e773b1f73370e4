package inmem

import (
	"context"
	"database/sql"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type conversationRepo struct {
	s *Store
}

func (r *conversationRepo) GetConversation(ctx context.Context, id int64) (model.Conversation, error) {
	defer r.s.lockRead(ctx)()

	c, ok := r.s.data.conversations[id]
	if !ok {
		return model.Conversation{}, repository.ErrNotFound
	}
	return c, nil
}

func (r *conversationRepo) find(fn func(c model.Conversation) bool) (model.Conversation, error) {
	for _, c := range r.s.data.conversations {
		if fn(c) {
			return c, nil
		}
	}
	return model.Conversation{}, repository.ErrNotFound
}

func (r *conversationRepo) GetConversationByContact(ctx context.Context, contactID int64) (model.Conversation, error) {
	defer r.s.lockRead(ctx)()

	return r.find(func(c model.Conversation) bool {
		return c.ContactID == contactID
	})
}

func (r *conversationRepo) GetConversationByExternalID(
	ctx context.Context, externalID string,
) (model.Conversation, error) {
	defer r.s.lockRead(ctx)()

	return r.find(func(c model.Conversation) bool {
		return c.ExternalID.Valid && c.ExternalID.String == externalID
	})
}

func (r *conversationRepo) InsertConversation(ctx context.Context, conv model.Conversation) (int64, error) {
	defer r.s.lockWrite(ctx)()

	for _, c := range r.s.data.conversations {
		if c.ContactID == conv.ContactID {
			return 0, repository.ErrDuplicate
		}
		if conv.ExternalID.Valid && c.ExternalID == conv.ExternalID {
			return 0, repository.ErrDuplicate
		}
	}

	conv.ID = r.s.nextID()
	conv.CreatedAt = r.s.now()
	conv.UpdatedAt = conv.CreatedAt
	r.s.data.conversations[conv.ID] = conv
	return conv.ID, nil
}

func (r *conversationRepo) SetConversationExternalID(ctx context.Context, id int64, externalID string) error {
	defer r.s.lockWrite(ctx)()

	c, ok := r.s.data.conversations[id]
	if !ok || c.ExternalID.Valid {
		return nil
	}
	for _, other := range r.s.data.conversations {
		if other.ExternalID.Valid && other.ExternalID.String == externalID {
			return repository.ErrDuplicate
		}
	}
	c.ExternalID = sql.NullString{Valid: true, String: externalID}
	r.s.data.conversations[id] = c
	return nil
}

func (r *conversationRepo) AdvanceWatermark(ctx context.Context, id int64, at time.Time) error {
	defer r.s.lockWrite(ctx)()

	c, ok := r.s.data.conversations[id]
	if !ok {
		return nil
	}
	if !c.LastActivityAt.Valid || at.After(c.LastActivityAt.Time) {
		c.LastActivityAt = sql.NullTime{Valid: true, Time: at}
	}
	r.s.data.conversations[id] = c
	return nil
}
