package bounce

import (
	"strings"
	"unicode"
)

// ReplyKind ...
type ReplyKind int

const (
	// ReplyPositive any engaged reply that is not a refusal
	ReplyPositive ReplyKind = iota + 1

	// ReplyNegative ...
	ReplyNegative

	// ReplyOptOut ...
	ReplyOptOut

	// ReplyOptIn ...
	ReplyOptIn
)

// optOutKeywords opt out wherever they appear as a whole word
var optOutKeywords = map[string]struct{}{
	"STOP": {}, "STOPALL": {}, "UNSUBSCRIBE": {},
}

// soloOptOutKeywords are ordinary words in a sentence, they opt out only
// when they are the whole message
var soloOptOutKeywords = map[string]struct{}{
	"CANCEL": {}, "END": {}, "QUIT": {},
}

var optInKeywords = map[string]struct{}{
	"START": {}, "UNSTOP": {},
}

var negativeWords = map[string]struct{}{
	"NO": {}, "NOPE": {}, "NAH": {}, "REMOVE": {},
}

var negativePhrases = []string{
	"not interested", "no thanks", "no thank you", "wrong number", "don't text", "do not text",
	"dont text", "leave me alone", "not now",
}

func tokens(body string) []string {
	return strings.FieldsFunc(strings.ToUpper(body), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(words []string, set map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func isOptOutWords(words []string) bool {
	if containsAny(words, optOutKeywords) {
		return true
	}
	return len(words) == 1 && containsAny(words, soloOptOutKeywords)
}

// IsOptOut reports STOP, STOPALL or UNSUBSCRIBE as a whole word, or CANCEL,
// END or QUIT as the entire message
func IsOptOut(body string) bool {
	return isOptOutWords(tokens(body))
}

// IsOptIn reports an opt-in keyword without any opt-out keyword
func IsOptIn(body string) bool {
	words := tokens(body)
	return containsAny(words, optInKeywords) && !isOptOutWords(words)
}

// ClassifyReply classifies an inbound reply to a campaign message
func ClassifyReply(body string) ReplyKind {
	words := tokens(body)
	if isOptOutWords(words) {
		return ReplyOptOut
	}
	if containsAny(words, optInKeywords) {
		return ReplyOptIn
	}

	lower := strings.ToLower(body)
	for _, phrase := range negativePhrases {
		if strings.Contains(lower, phrase) {
			return ReplyNegative
		}
	}
	if containsAny(words, negativeWords) {
		return ReplyNegative
	}
	return ReplyPositive
}
