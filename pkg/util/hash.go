package util

import "github.com/twmb/murmur3"

// PhoneHash returns the index key stored next to an E.164 phone number,
// lookups match on both the hash and the full number
func PhoneHash(e164 string) uint32 {
	return murmur3.Sum32([]byte(e164))
}
