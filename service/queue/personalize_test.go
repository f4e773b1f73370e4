package queue

import (
	"testing"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/stretchr/testify/assert"
)

func TestPersonalize(t *testing.T) {
	table := []struct {
		name        string
		template    string
		contact     model.Contact
		lastContact string
		expected    string
	}{
		{
			name:     "full-name",
			template: "Hello {name}!",
			contact:  model.Contact{Name: "Alice Smith"},
			expected: "Hello Alice Smith!",
		},
		{
			name:     "first-name",
			template: "Hi {first_name}, sale today",
			contact:  model.Contact{Name: "  Alice   Smith "},
			expected: "Hi Alice, sale today",
		},
		{
			name:     "name-is-phone",
			template: "Hi {first_name}, sale today",
			contact:  model.Contact{Name: "+1 555-000-1111"},
			expected: "Hi, sale today",
		},
		{
			name:     "no-name",
			template: "Thanks {name}!",
			contact:  model.Contact{},
			expected: "Thanks!",
		},
		{
			name:        "last-contact",
			template:    "Hi {first_name}, following up on our chat {last_contact}.",
			contact:     model.Contact{Name: "Bob"},
			lastContact: "on May 3",
			expected:    "Hi Bob, following up on our chat on May 3.",
		},
		{
			name:     "no-last-contact",
			template: "Hi {first_name}, following up on our chat {last_contact}.",
			contact:  model.Contact{Name: "Bob"},
			expected: "Hi Bob, following up on our chat.",
		},
	}

	for _, e := range table {
		tc := e
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Personalize(tc.template, tc.contact, tc.lastContact))
		})
	}
}

func TestLastContactText(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	assert.Equal(t, nil, err)

	now := newTime("2022-05-10T14:00:00Z")

	assert.Equal(t, "", lastContactText(time.Time{}, now, loc))
	assert.Equal(t, "earlier today", lastContactText(newTime("2022-05-10T05:00:00Z"), now, loc))
	// 23:30 on May 9 in New York
	assert.Equal(t, "yesterday", lastContactText(newTime("2022-05-10T03:30:00Z"), now, loc))
	assert.Equal(t, "on May 3", lastContactText(newTime("2022-05-03T14:00:00Z"), now, loc))
	assert.Equal(t, "on Dec 24, 2021", lastContactText(newTime("2021-12-24T18:00:00Z"), now, loc))
}

func TestBusinessHours(t *testing.T) {
	p := &Processor{conf: testConfig().Queue}
	loc, err := time.LoadLocation("America/New_York")
	assert.Equal(t, nil, err)

	hours, err := p.businessHoursOf(model.Campaign{})
	assert.Equal(t, nil, err)
	assert.Equal(t, businessHours{days: model.DefaultBusinessDays, start: 9 * 60, end: 17 * 60}, hours)

	assert.Equal(t, true, hours.contains(newTime("2022-05-10T13:00:00Z").In(loc)))  // Tue 09:00
	assert.Equal(t, false, hours.contains(newTime("2022-05-10T12:59:00Z").In(loc))) // Tue 08:59
	assert.Equal(t, false, hours.contains(newTime("2022-05-10T21:00:00Z").In(loc))) // Tue 17:00
	assert.Equal(t, false, hours.contains(newTime("2022-05-15T14:00:00Z").In(loc))) // Sun 10:00

	weekend, err := p.businessHoursOf(model.Campaign{
		BusinessHoursStart: "10:30",
		BusinessHoursEnd:   "14:00",
		BusinessDays:       model.BusinessDaysOf(model.Weekday(5), model.Sunday),
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, weekend.contains(newTime("2022-05-15T15:00:00Z").In(loc)))  // Sun 11:00
	assert.Equal(t, false, weekend.contains(newTime("2022-05-10T15:00:00Z").In(loc))) // Tue 11:00

	_, err = p.businessHoursOf(model.Campaign{BusinessHoursStart: "9am"})
	assert.NotEqual(t, nil, err)
}

func TestLocation_Fallback(t *testing.T) {
	assert.Equal(t, "Europe/Berlin", location("Europe/Berlin", "America/New_York").String())
	assert.Equal(t, "America/New_York", location("Mars/Base", "America/New_York").String())
	assert.Equal(t, "UTC", location("", "").String())
}
