package ledger

import (
	"fmt"
	"strings"

	"vault/internal/core"
	"vault/internal/rules"
	"vault/internal/schedule"
)

type AddBudgetItem struct {
	Item core.BudgetItem
}

func (AddBudgetItem) Name() string { return "AddBudgetItem" }

func (c AddBudgetItem) Execute(tx *Tx, _ Mutator) error {
	if err := c.Item.Validate(); err != nil {
		return err
	}
	item := c.Item
	item.ID = ""
	id, err := tx.Upsert(KindBudgetItem, item)
	if err != nil {
		return err
	}
	tx.Created(id)
	return nil
}

type UpdateBudgetItem struct {
	Item core.BudgetItem
}

func (UpdateBudgetItem) Name() string { return "UpdateBudgetItem" }

func (c UpdateBudgetItem) Execute(tx *Tx, _ Mutator) error {
	if tx.BudgetItem(c.Item.ID) == nil {
		return core.NotFound("budget item", c.Item.ID)
	}
	if err := c.Item.Validate(); err != nil {
		return err
	}
	_, err := tx.Upsert(KindBudgetItem, c.Item)
	return err
}

type DeleteBudgetItem struct {
	ID string
}

func (DeleteBudgetItem) Name() string { return "DeleteBudgetItem" }

func (c DeleteBudgetItem) Execute(tx *Tx, _ Mutator) error {
	return removeOrNotFound(tx, KindBudgetItem, "budget item", c.ID)
}

type AddBill struct {
	Bill core.Bill
}

func (AddBill) Name() string { return "AddBill" }

func (c AddBill) Execute(tx *Tx, _ Mutator) error {
	b := c.Bill
	b.ID = ""
	if b.Frequency == "" {
		b.Frequency = core.FrequencyNone
	}
	if b.Category == "" {
		b.Category = core.Needs
	}
	if err := b.Validate(); err != nil {
		return err
	}
	id, err := tx.Upsert(KindBill, b)
	if err != nil {
		return err
	}
	tx.Created(id)
	return nil
}

type UpdateBill struct {
	Bill core.Bill
}

func (UpdateBill) Name() string { return "UpdateBill" }

func (c UpdateBill) Execute(tx *Tx, _ Mutator) error {
	if tx.Bill(c.Bill.ID) == nil {
		return core.NotFound("bill", c.Bill.ID)
	}
	b := c.Bill
	if b.Frequency == "" {
		b.Frequency = core.FrequencyNone
	}
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := tx.Upsert(KindBill, b)
	return err
}

type DeleteBill struct {
	ID string
}

func (DeleteBill) Name() string { return "DeleteBill" }

func (c DeleteBill) Execute(tx *Tx, _ Mutator) error {
	return removeOrNotFound(tx, KindBill, "bill", c.ID)
}

// PayBill settles a bill and books the payment as an expense linked to it.
type PayBill struct {
	BillID    string
	AccountID string
	Date      core.Date
}

func (PayBill) Name() string { return "PayBill" }

func (c PayBill) Execute(tx *Tx, m Mutator) error {
	b := tx.Bill(c.BillID)
	if b == nil {
		return core.NotFound("bill", c.BillID)
	}
	if b.IsPaid {
		return core.Invalid("bill", core.ErrAlreadyPaid)
	}
	b.IsPaid = true
	bill := *b

	date := c.Date
	if date.IsZero() {
		date = tx.Today()
	}
	note := bill.Note
	if strings.TrimSpace(note) == "" {
		note = "Settled bill: " + bill.Merchant
	}
	if err := (AddExpense{Expense: core.Expense{
		Amount:          bill.Amount,
		Date:            date,
		Category:        bill.Category,
		SubCategory:     core.SubCategoryBillPayment,
		Merchant:        bill.Merchant,
		Note:            note,
		SourceAccountID: c.AccountID,
		IsConfirmed:     true,
		BillID:          bill.ID,
		IsMock:          bill.IsMock,
	}}).Execute(tx, m); err != nil {
		return err
	}
	tx.Notify("Bill", "Bill Settled",
		fmt.Sprintf("%s of %d has been logged as paid.", bill.Merchant, bill.Amount), core.SeveritySuccess)
	return nil
}

type AddRule struct {
	Rule core.Rule
}

func (AddRule) Name() string { return "AddRule" }

func (c AddRule) Execute(tx *Tx, _ Mutator) error {
	r := c.Rule
	r.ID = ""
	r.Keyword = strings.TrimSpace(r.Keyword)
	if err := r.Validate(); err != nil {
		return err
	}
	id, err := tx.Upsert(KindRule, r)
	if err != nil {
		return err
	}
	tx.Created(id)
	tx.Notify("Activity", "Rule Added",
		fmt.Sprintf("Keyword %q mapped to %s.", r.Keyword, r.Category), core.SeveritySuccess)
	return nil
}

type DeleteRule struct {
	ID string
}

func (DeleteRule) Name() string { return "DeleteRule" }

func (c DeleteRule) Execute(tx *Tx, _ Mutator) error {
	if err := removeOrNotFound(tx, KindRule, "rule", c.ID); err != nil {
		return err
	}
	tx.Notify("Activity", "Rule Removed", "Automation rule removed.", core.SeverityInfo)
	return nil
}

// RefineWithRules runs the rule set over uncategorized or unconfirmed
// expenses. Transfers are never touched.
type RefineWithRules struct{}

func (RefineWithRules) Name() string { return "RefineWithRules" }

func (RefineWithRules) Execute(tx *Tx, _ Mutator) error {
	changed := 0
	for i := range tx.state.Expenses {
		e := &tx.state.Expenses[i]
		if e.IsTransfer() || (e.Category != core.Uncategorized && e.IsConfirmed) {
			continue
		}
		r, ok := rules.MatchExpense(*e, tx.state.Rules)
		if !ok {
			continue
		}
		if e.Category == r.Category && e.SubCategory == r.SubCategory && e.RuleID == r.ID {
			continue
		}
		rules.Apply(e, r)
		changed++
	}
	if changed > 0 {
		tx.Affect(changed)
		tx.Touch()
	}
	return nil
}

type AddRecurring struct {
	Item core.RecurringItem
}

func (AddRecurring) Name() string { return "AddRecurring" }

func (c AddRecurring) Execute(tx *Tx, _ Mutator) error {
	item := c.Item
	item.ID = ""
	if item.Category == "" {
		item.Category = core.Uncategorized
	}
	if err := item.Validate(); err != nil {
		return err
	}
	id, err := tx.Upsert(KindRecurring, item)
	if err != nil {
		return err
	}
	tx.Created(id)
	label := item.Merchant
	if label == "" {
		label = item.Note
	}
	tx.Notify("Activity", "Recurring Added",
		fmt.Sprintf("%s added to schedules.", label), core.SeveritySuccess)
	return nil
}

type DeleteRecurring struct {
	ID string
}

func (DeleteRecurring) Name() string { return "DeleteRecurring" }

func (c DeleteRecurring) Execute(tx *Tx, _ Mutator) error {
	return removeOrNotFound(tx, KindRecurring, "recurring item", c.ID)
}

// RollForward brings every recurring obligation up to Today. See
// schedule.RollForward for the rules.
type RollForward struct {
	Today      core.Date
	MaxCatchUp int
}

func (RollForward) Name() string { return "RollForward" }

func (c RollForward) Execute(tx *Tx, _ Mutator) error {
	today := c.Today
	if today.IsZero() {
		today = tx.Today()
	}
	out := schedule.RollForward(tx.state.Bills, tx.state.RecurringItems, today, c.MaxCatchUp, tx.NewID)
	if out.Changed() {
		tx.state.Bills = out.Bills
		tx.state.RecurringItems = out.Recurring
		for _, b := range out.Materialized {
			tx.Created(b.ID)
		}
		tx.Affect(len(out.Materialized) + len(out.Reopened))
		tx.Touch()
	}
	tx.skipped += out.Skipped
	for _, b := range out.Overdue {
		tx.NotifyOnce(overdueNoticeID(b), "Bill", "Bill Overdue",
			fmt.Sprintf("%s of %d was due on %s.", b.Merchant, b.Amount, b.DueDate), core.SeverityWarning)
	}
	return nil
}

// overdueNoticeID names the overdue notice of one bill period, so repeated
// ticks do not flood the feed.
func overdueNoticeID(b core.Bill) string {
	return "overdue:" + b.ID + ":" + b.DueDate.String()
}

func removeOrNotFound(tx *Tx, kind Kind, label, id string) error {
	removed, err := tx.Remove(kind, id)
	if err != nil {
		return err
	}
	if !removed {
		return core.NotFound(label, id)
	}
	return nil
}
