package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/repository"
)

type contactRepo struct {
	s *Store
}

func (r *contactRepo) GetContact(ctx context.Context, id int64) (model.Contact, error) {
	defer r.s.lockRead(ctx)()

	c, ok := r.s.data.contacts[id]
	if !ok {
		return model.Contact{}, repository.ErrNotFound
	}
	return c, nil
}

func (r *contactRepo) GetContactByPhone(ctx context.Context, phoneHash uint32, phone string) (model.Contact, error) {
	defer r.s.lockRead(ctx)()

	var found []model.Contact
	for _, c := range r.s.data.contacts {
		if c.PhoneHash == phoneHash && c.Phone == phone {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return model.Contact{}, repository.ErrNotFound
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ID < found[j].ID
	})
	return found[0], nil
}

func (r *contactRepo) GetContactsByIDs(ctx context.Context, ids []int64) ([]model.Contact, error) {
	defer r.s.lockRead(ctx)()

	var result []model.Contact
	for _, id := range ids {
		if c, ok := r.s.data.contacts[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *contactRepo) InsertContact(ctx context.Context, contact model.Contact) (int64, error) {
	defer r.s.lockWrite(ctx)()

	for _, c := range r.s.data.contacts {
		if c.Phone == contact.Phone {
			return 0, repository.ErrDuplicate
		}
	}

	contact.ID = r.s.nextID()
	contact.CreatedAt = r.s.now()
	contact.UpdatedAt = contact.CreatedAt
	r.s.data.contacts[contact.ID] = contact
	return contact.ID, nil
}

func (r *contactRepo) SetSMSOptOut(ctx context.Context, id int64, optOut bool, at time.Time) error {
	defer r.s.lockWrite(ctx)()

	c, ok := r.s.data.contacts[id]
	if !ok {
		return nil
	}
	c.SMSOptOut = optOut
	c.OptOutAt = sql.NullTime{}
	if optOut {
		c.OptOutAt = sql.NullTime{Valid: true, Time: at}
	}
	r.s.data.contacts[id] = c
	return nil
}
