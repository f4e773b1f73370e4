package schedule

import (
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/apperr"
)

// Recurrence is the repeat pattern of a recurring campaign
type Recurrence struct {
	Type       model.RecurrenceType
	Interval   int64
	DaysOfWeek model.WeekdayList

	// EndDate is a calendar date in the campaign timezone, the zero value means no end
	EndDate time.Time
}

// Validate checks the pattern, now is used to reject an end date already past
func (r Recurrence) Validate(now time.Time, loc *time.Location) error {
	switch r.Type {
	case model.RecurrenceTypeDaily:
	case model.RecurrenceTypeWeekly:
		if len(r.DaysOfWeek) == 0 {
			return apperr.New(apperr.CodeInvalidRecurrence, "weekly recurrence requires days of week")
		}
		for _, d := range r.DaysOfWeek {
			if !d.Valid() {
				return apperr.New(apperr.CodeInvalidRecurrence, "invalid day of week %d", d)
			}
		}
	default:
		return apperr.New(apperr.CodeInvalidRecurrence, "unsupported recurrence type %q", r.Type)
	}

	if r.Interval < 0 {
		return apperr.New(apperr.CodeInvalidRecurrence, "negative interval %d", r.Interval)
	}

	if !r.EndDate.IsZero() && endOfDay(r.EndDate, loc).Before(now) {
		return apperr.New(apperr.CodeInvalidRecurrence, "end date %s already past", r.EndDate.Format("2006-01-02"))
	}
	return nil
}

func (r Recurrence) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return int(r.Interval)
}

// endOfDay is the first instant after the calendar date of t, read in loc
func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// wallClock reads the calendar fields of t as a local time in loc
func wallClock(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func addDays(local time.Time, n int) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d+n, local.Hour(), local.Minute(), local.Second(), 0, local.Location())
}

// weekStart is the Monday of the week containing the local time
func weekStart(local time.Time) time.Time {
	y, m, d := local.Date()
	offset := int(model.WeekdayOf(local.Weekday()))
	return time.Date(y, m, d-offset, 0, 0, 0, 0, local.Location())
}

// next returns the occurrence following prev, keeping the local time of day.
// The second result is false once the end date is passed.
func (r Recurrence) next(prev time.Time, loc *time.Location) (time.Time, bool) {
	local := prev.In(loc)

	var result time.Time
	switch r.Type {
	case model.RecurrenceTypeWeekly:
		days := r.DaysOfWeek.Normalize()
		if len(days) == 0 {
			result = addDays(local, 7*r.interval())
			break
		}
		for i := 1; i <= 7; i++ {
			candidate := addDays(local, i)
			if !days.Contains(model.WeekdayOf(candidate.Weekday())) {
				continue
			}
			if !weekStart(candidate).Equal(weekStart(local)) {
				candidate = addDays(candidate, 7*(r.interval()-1))
			}
			result = candidate
			break
		}
	default:
		result = addDays(local, r.interval())
	}

	if r.afterEnd(result, loc) {
		return time.Time{}, false
	}
	return result.UTC(), true
}

// first returns the first occurrence at or after start that is not before now
func (r Recurrence) first(start time.Time, now time.Time, loc *time.Location) (time.Time, bool) {
	local := start.In(loc)
	if r.Type == model.RecurrenceTypeWeekly && !r.DaysOfWeek.Contains(model.WeekdayOf(local.Weekday())) {
		next, ok := r.nextMatchingDay(local, loc)
		if !ok {
			return time.Time{}, false
		}
		local = next.In(loc)
	}

	for local.Before(now) {
		next, ok := r.next(local, loc)
		if !ok {
			return time.Time{}, false
		}
		local = next.In(loc)
	}

	if r.afterEnd(local, loc) {
		return time.Time{}, false
	}
	return local.UTC(), true
}

// nextMatchingDay moves to the first listed weekday without applying the interval
func (r Recurrence) nextMatchingDay(local time.Time, loc *time.Location) (time.Time, bool) {
	for i := 1; i <= 7; i++ {
		candidate := addDays(local, i)
		if r.DaysOfWeek.Contains(model.WeekdayOf(candidate.Weekday())) {
			if r.afterEnd(candidate, loc) {
				return time.Time{}, false
			}
			return candidate, true
		}
	}
	return time.Time{}, false
}

func (r Recurrence) afterEnd(t time.Time, loc *time.Location) bool {
	if r.EndDate.IsZero() {
		return false
	}
	return !t.Before(endOfDay(r.EndDate, loc))
}

// recurrenceOf rebuilds the pattern stored on a campaign
func recurrenceOf(c model.Campaign) Recurrence {
	r := Recurrence{
		Type:       c.RecurrenceType,
		Interval:   c.RecurrenceInterval,
		DaysOfWeek: c.RecurrenceDays,
	}
	if c.RecurrenceEndDate.Valid {
		r.EndDate = c.RecurrenceEndDate.Time
	}
	return r
}
