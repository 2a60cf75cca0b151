package core

import (
	"fmt"
	"time"
)

// DayOverflowPolicy decides what happens when a day of month does not exist
// in the target month, e.g. day 31 in April.
type DayOverflowPolicy string

const (
	// DayOverflowClamp moves the day back to the last day of the month.
	DayOverflowClamp DayOverflowPolicy = "clamp"
	// DayOverflowRollover lets the surplus days spill into the next month
	// (31 April becomes 1 May), as time.Date normalization does. Installment
	// due dates are then only non-decreasing: a purchase on 31 January has
	// installments 1 and 2 both due in March.
	DayOverflowRollover DayOverflowPolicy = "rollover"
)

// ParseDayOverflowPolicy maps a configuration value to a policy.
// The empty string selects DayOverflowClamp.
func ParseDayOverflowPolicy(s string) (DayOverflowPolicy, error) {
	switch DayOverflowPolicy(s) {
	case "", DayOverflowClamp:
		return DayOverflowClamp, nil
	case DayOverflowRollover:
		return DayOverflowRollover, nil
	}
	return "", fmt.Errorf("unknown day overflow policy %q: must be %q or %q", s, DayOverflowClamp, DayOverflowRollover)
}

// Place builds the date year/month/day under the policy.
func (p DayOverflowPolicy) Place(year int, month time.Month, day int) Date {
	if p == DayOverflowRollover {
		return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
	}
	// Normalize month overflow first so DaysIn sees a real month.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}
