package model

// BounceCategory classifies a failed delivery
type BounceCategory string

const (
	// BounceNone for delivered or not yet terminal messages
	BounceNone BounceCategory = ""

	// BounceHard number is invalid or permanently unreachable
	BounceHard BounceCategory = "hard"

	// BounceSoft temporary failure, a later send may succeed
	BounceSoft BounceCategory = "soft"

	// BounceCarrierRejection carrier filtered or blocked the message
	BounceCarrierRejection BounceCategory = "carrier_rejection"

	// BounceCapability destination can not receive this kind of message (landline, no MMS)
	BounceCapability BounceCategory = "capability"

	// BounceUnknown ...
	BounceUnknown BounceCategory = "unknown"
)

// AllBounceCategories ...
var AllBounceCategories = []BounceCategory{
	BounceHard, BounceSoft, BounceCarrierRejection, BounceCapability, BounceUnknown,
}
