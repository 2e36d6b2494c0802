package schedule

import (
	"slices"
	"strings"

	"vault/internal/core"
)

// DefaultMaxCatchUp bounds how many missed occurrences one roll-forward
// materializes per recurring item.
const DefaultMaxCatchUp = 12

// Outcome is the result of one roll-forward pass. Bills and Recurring are
// the full updated collections; the other slices describe what changed.
type Outcome struct {
	Bills     []core.Bill
	Recurring []core.RecurringItem

	Materialized []core.Bill
	Reopened     []core.Bill
	Overdue      []core.Bill
	Skipped      int
}

// Changed reports whether the pass modified any stored entity.
func (o Outcome) Changed() bool {
	return len(o.Materialized) > 0 || len(o.Reopened) > 0 || o.Skipped > 0
}

// RollForward materializes bills for elapsed recurring occurrences, reopens
// settled recurring bills whose period has ended, and collects overdue
// bills. It does not modify its inputs. newID supplies ids for new bills.
func RollForward(bills []core.Bill, recurring []core.RecurringItem, today core.Date, maxCatchUp int, newID func() string) Outcome {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	out := Outcome{
		Bills:     slices.Clone(bills),
		Recurring: slices.Clone(recurring),
	}

	existing := make(map[string]struct{}, len(bills))
	for _, b := range bills {
		if b.RecurringID != "" {
			existing[occurrenceKey(b.RecurringID, b.DueDate)] = struct{}{}
		}
	}

	for i := range out.Recurring {
		item := &out.Recurring[i]
		if item.NextDueDate.IsZero() || item.NextDueDate.After(today) {
			continue
		}
		a, err := GetAdvancer(item.Frequency)
		if err != nil {
			continue
		}
		var due []core.Date
		d := item.NextDueDate
		for !d.After(today) {
			due = append(due, d)
			d = a.Next(d)
		}
		item.NextDueDate = d
		if len(due) > maxCatchUp {
			out.Skipped += len(due) - maxCatchUp
			due = due[len(due)-maxCatchUp:]
		}
		for _, date := range due {
			key := occurrenceKey(item.ID, date)
			if _, ok := existing[key]; ok {
				continue
			}
			existing[key] = struct{}{}
			bill := core.Bill{
				ID:          newID(),
				Merchant:    billMerchant(*item),
				Amount:      item.Amount,
				DueDate:     date,
				Category:    item.Category,
				Frequency:   core.FrequencyNone,
				Note:        item.Note,
				RecurringID: item.ID,
				IsMock:      item.IsMock,
			}
			out.Bills = append(out.Bills, bill)
			out.Materialized = append(out.Materialized, bill)
		}
	}

	for i := range out.Bills {
		b := &out.Bills[i]
		if b.IsPaid && b.Frequency.IsRecurring() && !b.DueDate.After(today) {
			next, _, ok := NextAfter(b.DueDate, today, b.Frequency)
			if ok {
				b.IsPaid = false
				b.DueDate = next
				out.Reopened = append(out.Reopened, *b)
			}
		}
		if IsOverdue(*b, today) {
			out.Overdue = append(out.Overdue, *b)
		}
	}
	return out
}

func occurrenceKey(recurringID string, d core.Date) string {
	return recurringID + "|" + d.String()
}

func billMerchant(r core.RecurringItem) string {
	for _, s := range []string{r.Merchant, r.Note, r.SubCategory} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "Recurring"
}
