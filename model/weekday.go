package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days with 0 = Monday ... 6 = Sunday
type Weekday int

const (
	// Monday ...
	Monday Weekday = 0
	// Friday ...
	Friday Weekday = 4
	// Sunday ...
	Sunday Weekday = 6
)

// WeekdayOf converts from time.Weekday (where Sunday is 0)
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// Valid ...
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// WeekdayList is stored as a comma separated string, e.g. "0,2,4"
type WeekdayList []Weekday

// Contains ...
func (l WeekdayList) Contains(d Weekday) bool {
	for _, x := range l {
		if x == d {
			return true
		}
	}
	return false
}

// Normalize returns a sorted copy without duplicates
func (l WeekdayList) Normalize() WeekdayList {
	seen := map[Weekday]struct{}{}
	var result WeekdayList
	for _, d := range l {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Scan implements sql.Scanner
func (l *WeekdayList) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("model: cannot scan %T into WeekdayList", value)
	}

	var result WeekdayList
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("model: invalid weekday %q: %w", part, err)
		}
		result = append(result, Weekday(n))
	}
	*l = result
	return nil
}

// Value implements driver.Valuer
func (l WeekdayList) Value() (driver.Value, error) {
	parts := make([]string, 0, len(l))
	for _, d := range l {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ","), nil
}

// BusinessDays is a bitmask over Weekday (bit 0 = Monday)
type BusinessDays int

// DefaultBusinessDays is Monday to Friday
const DefaultBusinessDays BusinessDays = 0x1f

// Has ...
func (b BusinessDays) Has(d Weekday) bool {
	return b&(1<<uint(d)) != 0
}

// BusinessDaysOf ...
func BusinessDaysOf(days ...Weekday) BusinessDays {
	var b BusinessDays
	for _, d := range days {
		b |= 1 << uint(d)
	}
	return b
}
