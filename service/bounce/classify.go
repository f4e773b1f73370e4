package bounce

import (
	"strings"

	"github.com/smsflow/smsflow/model"
)

type rule struct {
	category model.BounceCategory
	codes    []string
	keywords []string
}

// rules are checked in order, the first match wins
var rules = []rule{
	{
		category: model.BounceCapability,
		codes:    []string{"30006", "21614", "21612"},
		keywords: []string{
			"landline", "not sms capable", "cannot receive sms", "cannot receive text",
			"not capable", "mms not supported", "unsupported message type", "not mobile",
		},
	},
	{
		category: model.BounceHard,
		codes:    []string{"30005", "21211", "21217", "30004"},
		keywords: []string{
			"invalid number", "invalid phone", "invalid destination", "not a valid",
			"does not exist", "unknown subscriber", "unknown destination", "disconnected",
			"unallocated", "no longer in service", "not in service", "deactivated",
		},
	},
	{
		category: model.BounceCarrierRejection,
		codes:    []string{"30007", "30032", "30034", "21610"},
		keywords: []string{
			"carrier rejected", "rejected by carrier", "blocked by carrier", "carrier violation",
			"filtered", "spam", "blocked", "violation", "blacklist", "unregistered", "10dlc",
		},
	},
	{
		category: model.BounceSoft,
		codes:    []string{"30003", "30001", "30002", "30008"},
		keywords: []string{
			"unreachable", "temporarily", "temporary", "timeout", "timed out", "queue overflow",
			"rate limit", "network", "try again", "powered off", "out of coverage", "busy",
		},
	},
}

// Classify maps a terminal delivery status and the provider's error detail to a bounce category.
// Successful or non terminal statuses have no category.
func Classify(status string, detail string) model.BounceCategory {
	if !model.IsFailedMessageStatus(strings.ToLower(status)) {
		return model.BounceNone
	}

	text := strings.ToLower(detail)
	for _, r := range rules {
		for _, code := range r.codes {
			if strings.Contains(text, code) {
				return r.category
			}
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return model.BounceUnknown
}

// ClassifySendError is used for sends rejected by the provider API itself
func ClassifySendError(detail string) model.BounceCategory {
	return Classify(model.MessageStatusFailed, detail)
}

// MembershipStatusOf maps a provider message status to the membership status it implies
func MembershipStatusOf(status string) (model.MembershipStatus, bool) {
	switch strings.ToLower(status) {
	case model.MessageStatusDelivered:
		return model.MembershipStatusDelivered, true
	case model.MessageStatusFailed, model.MessageStatusUndelivered:
		return model.MembershipStatusFailed, true
	default:
		return "", false
	}
}
