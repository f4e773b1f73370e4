package model

import (
	"database/sql"
	"time"
)

// Membership is the participation of a contact within a campaign
type Membership struct {
	ID         int64 `db:"id"`
	CampaignID int64 `db:"campaign_id"`
	ContactID  int64 `db:"contact_id"`

	Status         MembershipStatus `db:"status"`
	Variant        NullVariant      `db:"variant"`
	SentAt         sql.NullTime     `db:"sent_at"`
	ErrorMessage   sql.NullString   `db:"error_message"`
	BounceCategory BounceCategory   `db:"bounce_category"`

	SendActivityID  sql.NullInt64 `db:"send_activity_id"`
	ReplyActivityID sql.NullInt64 `db:"reply_activity_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MembershipStatus ...
type MembershipStatus string

const (
	// MembershipStatusPending ...
	MembershipStatusPending MembershipStatus = "pending"

	// MembershipStatusSent ...
	MembershipStatusSent MembershipStatus = "sent"

	// MembershipStatusDelivered ...
	MembershipStatusDelivered MembershipStatus = "delivered"

	// MembershipStatusFailed ...
	MembershipStatusFailed MembershipStatus = "failed"

	// MembershipStatusRepliedPositive ...
	MembershipStatusRepliedPositive MembershipStatus = "replied_positive"

	// MembershipStatusRepliedNegative ...
	MembershipStatusRepliedNegative MembershipStatus = "replied_negative"

	// MembershipStatusOptedOut ...
	MembershipStatusOptedOut MembershipStatus = "opted_out"
)

func membershipRank(s MembershipStatus) int {
	switch s {
	case MembershipStatusPending:
		return 0
	case MembershipStatusSent:
		return 1
	case MembershipStatusDelivered, MembershipStatusFailed:
		return 2
	case MembershipStatusRepliedPositive, MembershipStatusRepliedNegative:
		return 3
	case MembershipStatusOptedOut:
		return 4
	default:
		return -1
	}
}

// IsReply ...
func (s MembershipStatus) IsReply() bool {
	return s == MembershipStatusRepliedPositive || s == MembershipStatusRepliedNegative
}

// CanTransition reports whether a membership may move from one status to another.
// Statuses only advance. Replies are accepted after sent or delivered.
// A failed send can not become delivered or replied.
func CanTransition(from, to MembershipStatus) bool {
	if from == to {
		return false
	}
	if to.IsReply() {
		return from == MembershipStatusSent || from == MembershipStatusDelivered
	}
	if from == MembershipStatusFailed && to != MembershipStatusOptedOut {
		return false
	}
	if from.IsReply() && to != MembershipStatusOptedOut {
		return false
	}

	fromRank := membershipRank(from)
	toRank := membershipRank(to)
	if fromRank < 0 || toRank < 0 {
		return false
	}
	return toRank > fromRank
}
