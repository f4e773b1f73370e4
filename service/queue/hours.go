package queue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smsflow/smsflow/model"
)

// parseClock parses HH:MM into minutes after midnight
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// location returns the campaign timezone, then the fallback, then UTC
func location(name string, fallback string) *time.Location {
	for _, n := range []string{name, fallback} {
		if n == "" {
			continue
		}
		if loc, err := time.LoadLocation(n); err == nil {
			return loc
		}
	}
	return time.UTC
}

type businessHours struct {
	days  model.BusinessDays
	start int
	end   int
}

func (p *Processor) businessHoursOf(c model.Campaign) (businessHours, error) {
	startText := c.BusinessHoursStart
	if startText == "" {
		startText = p.conf.DefaultHoursStart
	}
	endText := c.BusinessHoursEnd
	if endText == "" {
		endText = p.conf.DefaultHoursEnd
	}

	start, err := parseClock(startText)
	if err != nil {
		return businessHours{}, err
	}
	end, err := parseClock(endText)
	if err != nil {
		return businessHours{}, err
	}

	days := c.BusinessDays
	if days == 0 {
		days = model.DefaultBusinessDays
	}
	return businessHours{days: days, start: start, end: end}, nil
}

// contains reports whether the local time is inside the window, end exclusive
func (h businessHours) contains(local time.Time) bool {
	if !h.days.Has(model.WeekdayOf(local.Weekday())) {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= h.start && minutes < h.end
}

func startOfDay(local time.Time) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, local.Location())
}
