//go:build integration

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/smsflow/smsflow/model"
)

func newContext() context.Context {
	return context.Background()
}

func newTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func newNullTime(s string) sql.NullTime {
	return sql.NullTime{
		Valid: true,
		Time:  newTime(s),
	}
}

func newContactModel(phone string) model.Contact {
	return model.Contact{
		Name:      "Alice",
		Phone:     phone,
		PhoneHash: 1111,
	}
}
