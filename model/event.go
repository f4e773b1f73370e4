package model

import (
	"database/sql"
	"time"
)

// WebhookEvent is the append-only log of every received webhook
type WebhookEvent struct {
	ID              int64          `db:"id"`
	ExternalEventID string         `db:"external_event_id"`
	EventType       string         `db:"event_type"`
	Payload         []byte         `db:"payload"`
	Processed       bool           `db:"processed"`
	ErrorMessage    sql.NullString `db:"error_message"`
	ReceivedAt      time.Time      `db:"received_at"`
	ProcessedAt     sql.NullTime   `db:"processed_at"`
}

// FailedRetry is a failed ingestion attempt waiting for re-processing
type FailedRetry struct {
	ID             int64         `db:"id"`
	WebhookEventID sql.NullInt64 `db:"webhook_event_id"`
	EventType      string        `db:"event_type"`
	Payload        []byte        `db:"payload"`
	ErrorMessage   string        `db:"error_message"`
	RetryCount     int64         `db:"retry_count"`
	Resolved       bool          `db:"resolved"`
	ResolvedAt     sql.NullTime  `db:"resolved_at"`
	NextRetryAt    time.Time     `db:"next_retry_at"`
	LastAttemptAt  sql.NullTime  `db:"last_attempt_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
