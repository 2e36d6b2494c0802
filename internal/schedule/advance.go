// Package schedule computes due dates for recurring obligations and rolls
// elapsed ones forward.
//
// Each frequency has its own Advancer strategy. Month and year steps use
// calendar arithmetic with Go's normalization, so Jan 31 plus one month is
// Mar 3 (Mar 2 in a leap year) and Feb 29 plus one year is Mar 1.
package schedule

import (
	"fmt"

	"vault/internal/core"
)

// Advancer moves a due date forward by one period.
type Advancer interface {
	Next(base core.Date) core.Date
}

// WeeklyAdvancer adds seven days.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(base core.Date) core.Date {
	return base.AddDays(7)
}

// MonthlyAdvancer adds one calendar month.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(base core.Date) core.Date {
	return core.Date{Time: base.AddDate(0, 1, 0)}
}

// YearlyAdvancer adds one calendar year.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(base core.Date) core.Date {
	return core.Date{Time: base.AddDate(1, 0, 0)}
}

var advancers = map[core.Frequency]Advancer{
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetAdvancer returns the strategy for a recurring frequency.
func GetAdvancer(f core.Frequency) (Advancer, error) {
	a, ok := advancers[f]
	if !ok {
		return nil, fmt.Errorf("no schedule for frequency %q", f)
	}
	return a, nil
}

// NextDueDate returns the next occurrence after base. It reports false for
// None and unknown frequencies, which never produce a recurring item.
func NextDueDate(base core.Date, f core.Frequency) (core.Date, bool) {
	a, err := GetAdvancer(f)
	if err != nil || base.IsZero() {
		return core.Date{}, false
	}
	return a.Next(base), true
}

// NextAfter advances base until it is strictly after today and returns the
// result with the number of steps taken.
func NextAfter(base, today core.Date, f core.Frequency) (core.Date, int, bool) {
	a, err := GetAdvancer(f)
	if err != nil || base.IsZero() {
		return base, 0, false
	}
	steps := 0
	for !base.After(today) {
		base = a.Next(base)
		steps++
	}
	return base, steps, true
}
