package queue

import (
	"strings"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/phone"
)

// Placeholders of campaign templates
const (
	PlaceholderName        = "{name}"
	PlaceholderFirstName   = "{first_name}"
	PlaceholderLastContact = "{last_contact}"
)

// DisplayName returns the contact name, empty when the name is only a phone number
func DisplayName(c model.Contact) string {
	name := strings.TrimSpace(c.Name)
	if name == "" || phone.LooksLikePhone(name) {
		return ""
	}
	return name
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// lastContactText describes the previous interaction, e.g. "on May 3"
func lastContactText(last time.Time, now time.Time, loc *time.Location) string {
	if last.IsZero() {
		return ""
	}
	local := last.In(loc)
	days := int(civilDate(now.In(loc)).Sub(civilDate(local)).Hours() / 24)
	switch {
	case days <= 0:
		return "earlier today"
	case days == 1:
		return "yesterday"
	case local.Year() == now.In(loc).Year():
		return "on " + local.Format("Jan 2")
	default:
		return "on " + local.Format("Jan 2, 2006")
	}
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var spaceFixer = strings.NewReplacer("  ", " ", " ,", ",", " !", "!", " .", ".", " ?", "?")

// Personalize substitutes the template placeholders
func Personalize(template string, contact model.Contact, lastContact string) string {
	name := DisplayName(contact)

	r := strings.NewReplacer(
		PlaceholderName, name,
		PlaceholderFirstName, firstName(name),
		PlaceholderLastContact, lastContact,
	)
	text := r.Replace(template)
	if name == "" || lastContact == "" {
		text = spaceFixer.Replace(text)
	}
	return strings.TrimSpace(text)
}
