//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/smsflow/smsflow/pkg/integration"
	"github.com/stretchr/testify/assert"
)

func newProviderTest() (Provider, Contact) {
	tc := integration.NewTestCase()
	tc.Reset()
	return NewProvider(tc.DB), NewContact()
}

func TestProvider_Transact_Commit_Visible_To_Readonly(t *testing.T) {
	p, repo := newProviderTest()

	var id int64
	err := p.Transact(newContext(), func(ctx context.Context) error {
		var err error
		id, err = repo.InsertContact(ctx, newContactModel("+15550001111"))
		return err
	})
	assert.Equal(t, nil, err)

	contact, err := repo.GetContactByPhone(p.Readonly(newContext()), 1111, "+15550001111")
	assert.Equal(t, nil, err)
	assert.Equal(t, id, contact.ID)
}

func TestProvider_Transact_Nested_Joins_Outer(t *testing.T) {
	p, repo := newProviderTest()

	outerErr := errors.New("outer failed")
	err := p.Transact(newContext(), func(ctx context.Context) error {
		err := p.Transact(ctx, func(ctx context.Context) error {
			_, err := repo.InsertContact(ctx, newContactModel("+15550001111"))
			return err
		})
		assert.Equal(t, nil, err)

		// the inner insert is visible through the same transaction
		_, err = repo.GetContactByPhone(p.Readonly(ctx), 1111, "+15550001111")
		assert.Equal(t, nil, err)

		return outerErr
	})
	assert.Equal(t, outerErr, err)

	_, err = repo.GetContactByPhone(p.Readonly(newContext()), 1111, "+15550001111")
	assert.Equal(t, ErrNotFound, err)
}

func TestProvider_Transact_Rollback_On_Panic(t *testing.T) {
	p, repo := newProviderTest()

	assert.PanicsWithValue(t, "gateway exploded", func() {
		_ = p.Transact(newContext(), func(ctx context.Context) error {
			_, err := repo.InsertContact(ctx, newContactModel("+15550001111"))
			assert.Equal(t, nil, err)
			panic("gateway exploded")
		})
	})

	_, err := repo.GetContactByPhone(p.Readonly(newContext()), 1111, "+15550001111")
	assert.Equal(t, ErrNotFound, err)
}

func TestProvider_Transact_Duplicate_Phone(t *testing.T) {
	p, repo := newProviderTest()

	err := p.Transact(newContext(), func(ctx context.Context) error {
		_, err := repo.InsertContact(ctx, newContactModel("+15550001111"))
		return err
	})
	assert.Equal(t, nil, err)

	err = p.Transact(newContext(), func(ctx context.Context) error {
		_, err := repo.InsertContact(ctx, newContactModel("+15550001111"))
		return err
	})
	assert.Equal(t, ErrDuplicate, err)
}
