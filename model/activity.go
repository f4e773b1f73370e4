package model

import (
	"database/sql"
	"time"
)

// Activity is one inbound/outbound message or call
type Activity struct {
	ID         int64             `db:"id"`
	ExternalID string            `db:"external_id"`
	Kind       ActivityKind      `db:"kind"`
	Direction  ActivityDirection `db:"direction"`
	Status     string            `db:"status"`
	Body       string            `db:"body"`
	OccurredAt time.Time         `db:"occurred_at"`
	Metadata   ActivityMetadata  `db:"metadata"`

	ContactID      sql.NullInt64 `db:"contact_id"`
	ConversationID sql.NullInt64 `db:"conversation_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ActivityKind ...
type ActivityKind string

const (
	// ActivityKindMessage ...
	ActivityKindMessage ActivityKind = "message"

	// ActivityKindCall ...
	ActivityKindCall ActivityKind = "call"
)

// ActivityDirection ...
type ActivityDirection string

const (
	// DirectionInbound ...
	DirectionInbound ActivityDirection = "inbound"

	// DirectionOutbound ...
	DirectionOutbound ActivityDirection = "outbound"
)

// Message delivery statuses reported by the provider
const (
	MessageStatusQueued      = "queued"
	MessageStatusSent        = "sent"
	MessageStatusDelivered   = "delivered"
	MessageStatusUndelivered = "undelivered"
	MessageStatusFailed      = "failed"
	MessageStatusReceived    = "received"
)

// IsTerminalMessageStatus reports statuses after which the provider sends no further updates
func IsTerminalMessageStatus(status string) bool {
	switch status {
	case MessageStatusDelivered, MessageStatusUndelivered, MessageStatusFailed:
		return true
	default:
		return false
	}
}

// IsFailedMessageStatus ...
func IsFailedMessageStatus(status string) bool {
	return status == MessageStatusUndelivered || status == MessageStatusFailed
}
