package model

import (
	"database/sql"
	"time"
)

// Contact is the minimal slice of the contact aggregate needed by the core
type Contact struct {
	ID        int64        `db:"id"`
	Name      string       `db:"name"`
	Phone     string       `db:"phone"`
	PhoneHash uint32       `db:"phone_hash"`
	SMSOptOut bool         `db:"sms_opt_out"`
	OptOutAt  sql.NullTime `db:"opt_out_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Conversation is one thread of activities per contact
type Conversation struct {
	ID             int64          `db:"id"`
	ContactID      int64          `db:"contact_id"`
	ExternalID     sql.NullString `db:"external_id"`
	LastActivityAt sql.NullTime   `db:"last_activity_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
