package schedule

import (
	"cmp"
	"slices"

	"vault/internal/core"
)

// State is where an obligation sits in its lifecycle.
type State string

const (
	Scheduled State = "Scheduled"
	Due       State = "Due"
	Settled   State = "Settled"
)

// Source tells which persisted entity an obligation was read from.
type Source string

const (
	FromBill      Source = "bill"
	FromRecurring Source = "recurring"
)

// Obligation is the single view over bills and recurring items.
type Obligation struct {
	ID          string         `json:"id"`
	Source      Source         `json:"source"`
	Merchant    string         `json:"merchant"`
	Amount      int64          `json:"amount"`
	DueDate     core.Date      `json:"dueDate"`
	Category    core.Category  `json:"category"`
	Frequency   core.Frequency `json:"frequency"`
	State       State          `json:"state"`
	Overdue     bool           `json:"overdue"`
	RecurringID string         `json:"recurringId,omitempty"`
}

// StateOf classifies a bill on the given day.
func StateOf(b core.Bill, today core.Date) State {
	switch {
	case b.IsPaid:
		return Settled
	case !b.DueDate.After(today):
		return Due
	default:
		return Scheduled
	}
}

// IsOverdue reports an unpaid bill whose due date has passed.
func IsOverdue(b core.Bill, today core.Date) bool {
	return !b.IsPaid && !b.DueDate.IsZero() && b.DueDate.Before(today)
}

// Obligations lists every bill and every recurring item ordered by due date.
func Obligations(bills []core.Bill, recurring []core.RecurringItem, today core.Date) []Obligation {
	out := make([]Obligation, 0, len(bills)+len(recurring))
	for _, b := range bills {
		out = append(out, Obligation{
			ID:          b.ID,
			Source:      FromBill,
			Merchant:    b.Merchant,
			Amount:      b.Amount,
			DueDate:     b.DueDate,
			Category:    b.Category,
			Frequency:   b.Frequency,
			State:       StateOf(b, today),
			Overdue:     IsOverdue(b, today),
			RecurringID: b.RecurringID,
		})
	}
	for _, r := range recurring {
		out = append(out, Obligation{
			ID:        r.ID,
			Source:    FromRecurring,
			Merchant:  billMerchant(r),
			Amount:    r.Amount,
			DueDate:   r.NextDueDate,
			Category:  r.Category,
			Frequency: r.Frequency,
			State:     Scheduled,
		})
	}
	slices.SortStableFunc(out, func(a, b Obligation) int {
		return cmp.Compare(a.DueDate.Unix(), b.DueDate.Unix())
	})
	return out
}
