// Package services provides business logic and orchestration services.
//
// This file implements installment scheduling for card purchases. The due
// date of each installment depends on the card billing cycle and on how the
// configured DayOverflowPolicy treats days missing from short months; each
// policy has its own DueDateCalculator.
package services

import (
	"fmt"
	"time"

	"financas/internal/core"
)

// DueDateCalculator is the strategy interface for placing installment due dates.
type DueDateCalculator interface {
	// DueDate returns the due date of installment sequence (1-based) of a
	// purchase made on purchaseDate.
	DueDate(purchaseDate core.Date, sequence int, cycle core.BillingCycle) core.Date
}

// ClampingCalculator never lets a date spill into the following month.
//
// The closing-day comparison uses the day the purchase was made, so an
// installment advanced into a short month is not pulled back a cycle when
// its clamped day drops below the closing day.
type ClampingCalculator struct{}

func (ClampingCalculator) DueDate(purchaseDate core.Date, sequence int, cycle core.BillingCycle) core.Date {
	month := purchaseDate.Month() + time.Month(sequence-1)
	if purchaseDate.Day() > cycle.ClosingDay {
		month++
	}
	return core.DayOverflowClamp.Place(purchaseDate.Year(), month, cycle.DueDay)
}

// RolloverCalculator reproduces plain calendar normalization: every step
// keeps the day of month and lets time.Date roll surplus days forward. Due
// dates are not strictly increasing under this policy; two installments of a
// month-end purchase can land on the same date.
type RolloverCalculator struct{}

func (RolloverCalculator) DueDate(purchaseDate core.Date, sequence int, cycle core.BillingCycle) core.Date {
	p := core.DayOverflowRollover
	d := p.Place(purchaseDate.Year(), purchaseDate.Month()+time.Month(sequence-1), purchaseDate.Day())
	if d.Day() > cycle.ClosingDay {
		d = p.Place(d.Year(), d.Month()+1, d.Day())
	}
	return p.Place(d.Year(), d.Month(), cycle.DueDay)
}

var dueDateStrategies = map[core.DayOverflowPolicy]DueDateCalculator{
	core.DayOverflowClamp:    ClampingCalculator{},
	core.DayOverflowRollover: RolloverCalculator{},
}

// GetDueDateCalculator returns the calculator for a day overflow policy.
func GetDueDateCalculator(policy core.DayOverflowPolicy) (DueDateCalculator, error) {
	calc, ok := dueDateStrategies[policy]
	if !ok {
		return nil, fmt.Errorf("unknown day overflow policy: %s", policy)
	}
	return calc, nil
}

// ScheduleRequest describes a purchase to be split into installments.
type ScheduleRequest struct {
	Total        core.Money
	PurchaseDate core.Date
	Count        int
	// CustomAmounts replaces the equal split only when it holds exactly Count values.
	CustomAmounts []core.Money
}

// InstallmentScheduler computes installment amounts and due dates. It holds
// no mutable state and is safe for concurrent use.
type InstallmentScheduler struct {
	dueDates DueDateCalculator
}

func NewInstallmentScheduler(policy core.DayOverflowPolicy) (*InstallmentScheduler, error) {
	calc, err := GetDueDateCalculator(policy)
	if err != nil {
		return nil, err
	}
	return &InstallmentScheduler{dueDates: calc}, nil
}

// Schedule returns Count installments numbered 1..Count in order. Count must
// lie in 1..core.MaxInstallments.
//
// Equal-split amounts are round(Total/Count, 2) each; the rounding remainder
// is left uncorrected. A CustomAmounts slice of the wrong length is ignored.
func (s *InstallmentScheduler) Schedule(req ScheduleRequest, cycle core.BillingCycle) ([]core.Installment, error) {
	if req.Count <= 0 || req.Count > core.MaxInstallments {
		return nil, core.ErrInvalidInstallmentCount
	}
	if cycle.ClosingDay < 1 || cycle.ClosingDay > 31 || cycle.DueDay < 1 || cycle.DueDay > 31 {
		return nil, fmt.Errorf("%w: billing cycle closing=%d due=%d", core.ErrInvalidCard, cycle.ClosingDay, cycle.DueDay)
	}

	useCustom := len(req.CustomAmounts) == req.Count
	equal := req.Total.Split(req.Count)

	out := make([]core.Installment, req.Count)
	for i := 1; i <= req.Count; i++ {
		amount := equal
		if useCustom {
			amount = req.CustomAmounts[i-1]
		}
		out[i-1] = core.Installment{
			Number:  i,
			Amount:  amount,
			DueDate: s.dueDates.DueDate(req.PurchaseDate, i, cycle),
		}
	}
	return out, nil
}
