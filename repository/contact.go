package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smsflow/smsflow/model"
)

// Contact ...
type Contact interface {
	GetContact(ctx context.Context, id int64) (model.Contact, error)
	GetContactByPhone(ctx context.Context, phoneHash uint32, phone string) (model.Contact, error)
	GetContactsByIDs(ctx context.Context, ids []int64) ([]model.Contact, error)

	InsertContact(ctx context.Context, contact model.Contact) (int64, error)
	SetSMSOptOut(ctx context.Context, id int64, optOut bool, at time.Time) error
}

type contactImpl struct {
}

// NewContact ...
func NewContact() Contact {
	return &contactImpl{}
}

const contactColumns = `id, name, phone, phone_hash, sms_opt_out, opt_out_at, created_at, updated_at`

// GetContact ...
func (c *contactImpl) GetContact(ctx context.Context, id int64) (model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contact WHERE id = ?`
	var result model.Contact
	err := GetReadonly(ctx).GetContext(ctx, &result, query, id)
	return result, mapError(err)
}

// GetContactByPhone looks up by the indexed phone hash, the phone itself resolves collisions
func (c *contactImpl) GetContactByPhone(ctx context.Context, phoneHash uint32, phone string) (model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contact
WHERE phone_hash = ? AND phone = ?
ORDER BY id LIMIT 1`
	var result model.Contact
	err := GetReadonly(ctx).GetContext(ctx, &result, query, phoneHash, phone)
	return result, mapError(err)
}

// GetContactsByIDs ...
func (c *contactImpl) GetContactsByIDs(ctx context.Context, ids []int64) ([]model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+contactColumns+` FROM contact WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var result []model.Contact
	err = GetReadonly(ctx).SelectContext(ctx, &result, query, args...)
	return result, err
}

// InsertContact returns ErrDuplicate when the phone already exists
func (c *contactImpl) InsertContact(ctx context.Context, contact model.Contact) (int64, error) {
	query := `
INSERT INTO contact (name, phone, phone_hash, sms_opt_out, opt_out_at)
VALUES (:name, :phone, :phone_hash, :sms_opt_out, :opt_out_at)`
	res, err := GetTx(ctx).NamedExecContext(ctx, query, contact)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// SetSMSOptOut ...
func (c *contactImpl) SetSMSOptOut(ctx context.Context, id int64, optOut bool, at time.Time) error {
	query := `UPDATE contact SET sms_opt_out = ?, opt_out_at = ? WHERE id = ?`
	var optOutAt interface{}
	if optOut {
		optOutAt = at
	}
	_, err := GetTx(ctx).ExecContext(ctx, query, optOut, optOutAt, id)
	return err
}
