package ledger

import (
	"fmt"
	"strings"

	"vault/internal/core"
	"vault/internal/schedule"
)

const (
	transferMerchant = "Transfer"
	transferNote     = "Internal"
)

// AddExpense books an expense against its source account. A recurring
// frequency also creates exactly one RecurringItem due one period later.
type AddExpense struct {
	Expense   core.Expense
	Frequency core.Frequency
}

func (AddExpense) Name() string { return "AddExpense" }

func (c AddExpense) Execute(tx *Tx, m Mutator) error {
	e := c.Expense
	if e.Category == "" {
		e.Category = core.Uncategorized
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.TransferToAccountID != "" {
		if e.TransferToAccountID == e.SourceAccountID {
			return core.Invalid("transferToAccountId", core.ErrSameAccount)
		}
		if err := requireAccounts(tx, "sourceAccountId", e.SourceAccountID, e.TransferToAccountID); err != nil {
			return err
		}
	}
	if e.ID != "" && tx.Expense(e.ID) != nil {
		return fmt.Errorf("expense %q already exists", e.ID)
	}
	freq := c.Frequency
	if freq == "" {
		freq = core.FrequencyNone
	}
	if !freq.IsValid() {
		return core.Invalid("frequency", core.ErrInvalidFrequency)
	}

	id, err := tx.Upsert(KindExpense, e)
	if err != nil {
		return err
	}
	e.ID = id
	tx.Created(id)
	if err := m.Apply(tx, ExpenseEvent(e)); err != nil {
		return err
	}

	next, ok := schedule.NextDueDate(e.Date, freq)
	if !ok {
		return nil
	}
	rid, err := tx.Upsert(KindRecurring, core.RecurringItem{
		Amount:      e.Amount,
		Category:    e.Category,
		SubCategory: e.SubCategory,
		Merchant:    e.Merchant,
		Note:        e.Note,
		Frequency:   freq,
		NextDueDate: next,
		IsMock:      e.IsMock,
	})
	if err != nil {
		return err
	}
	tx.Created(rid)
	return nil
}

// ExpensePatch lists the fields an update may change. Nil means unchanged.
type ExpensePatch struct {
	Amount          *int64         `json:"amount,omitempty"`
	Date            *core.Date     `json:"date,omitempty"`
	Category        *core.Category `json:"category,omitempty"`
	SubCategory     *string        `json:"subCategory,omitempty"`
	Merchant        *string        `json:"merchant,omitempty"`
	Note            *string        `json:"note,omitempty"`
	SourceAccountID *string        `json:"sourceAccountId,omitempty"`
	IsConfirmed     *bool          `json:"isConfirmed,omitempty"`
	IsAIUpgraded    *bool          `json:"isAIUpgraded,omitempty"`
}

func (p ExpensePatch) apply(e *core.Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.SubCategory != nil {
		e.SubCategory = *p.SubCategory
	}
	if p.Merchant != nil {
		e.Merchant = *p.Merchant
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.SourceAccountID != nil {
		e.SourceAccountID = *p.SourceAccountID
	}
	if p.IsConfirmed != nil {
		e.IsConfirmed = *p.IsConfirmed
	}
	if p.IsAIUpgraded != nil {
		e.IsAIUpgraded = *p.IsAIUpgraded
	}
}

func (p ExpensePatch) recategorizes() bool {
	return p.Category != nil || p.SubCategory != nil
}

// UpdateExpense edits an expense. Any change to its balance effect reverses
// the old event and applies the new one. A category change is a
// manual correction: the expense is confirmed and the decision propagates to
// the same merchant.
type UpdateExpense struct {
	ID    string
	Patch ExpensePatch
}

func (UpdateExpense) Name() string { return "UpdateExpense" }

func (c UpdateExpense) Execute(tx *Tx, m Mutator) error {
	cur := tx.Expense(c.ID)
	if cur == nil {
		return core.NotFound("expense", c.ID)
	}
	old := *cur
	next := old
	c.Patch.apply(&next)
	if c.Patch.recategorizes() && c.Patch.IsConfirmed == nil {
		next.IsConfirmed = true
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if next.TransferToAccountID != "" && next.SourceAccountID != old.SourceAccountID {
		if next.SourceAccountID == next.TransferToAccountID {
			return core.Invalid("sourceAccountId", core.ErrSameAccount)
		}
		if err := requireAccounts(tx, "sourceAccountId", next.SourceAccountID); err != nil {
			return err
		}
	}
	*cur = next
	tx.Touch()

	if ExpenseEvent(old) != ExpenseEvent(next) {
		if err := m.Apply(tx, ExpenseEvent(old).Reverse()); err != nil {
			return err
		}
		if err := m.Apply(tx, ExpenseEvent(next)); err != nil {
			return err
		}
	}

	if c.Patch.recategorizes() {
		Propagate(tx, next.ID, next.Category, next.SubCategory, next.Merchant)
	}
	return nil
}

// DeleteExpense removes an expense and undoes its balance effect, both legs
// for a transfer. Deleting a bill payment reopens the bill.
type DeleteExpense struct {
	ID string
}

func (DeleteExpense) Name() string { return "DeleteExpense" }

func (c DeleteExpense) Execute(tx *Tx, m Mutator) error {
	cur := tx.Expense(c.ID)
	if cur == nil {
		return core.NotFound("expense", c.ID)
	}
	e := *cur
	if err := m.Apply(tx, ExpenseEvent(e).Reverse()); err != nil {
		return err
	}
	if e.BillID != "" {
		if b := tx.Bill(e.BillID); b != nil && b.IsPaid {
			b.IsPaid = false
		}
	}
	_, err := tx.Remove(KindExpense, e.ID)
	return err
}

// Transfer moves money between two accounts. It is recorded as a single
// expense on the source account carrying the destination id.
type Transfer struct {
	FromID string
	ToID   string
	Amount int64
	Date   core.Date
	Note   string
}

func (Transfer) Name() string { return "Transfer" }

func (c Transfer) Execute(tx *Tx, m Mutator) error {
	if strings.TrimSpace(c.FromID) == "" {
		return core.Invalid("fromId", core.ErrMissingField)
	}
	if strings.TrimSpace(c.ToID) == "" {
		return core.Invalid("toId", core.ErrMissingField)
	}
	if c.FromID == c.ToID {
		return core.Invalid("toId", core.ErrSameAccount)
	}
	if err := requireAccounts(tx, "fromId", c.FromID, c.ToID); err != nil {
		return err
	}
	date := c.Date
	if date.IsZero() {
		date = tx.Today()
	}
	note := c.Note
	if strings.TrimSpace(note) == "" {
		note = transferNote
	}
	e := core.Expense{
		Amount:              c.Amount,
		Date:                date,
		Category:            core.Uncategorized,
		SubCategory:         core.SubCategoryTransfer,
		Merchant:            transferMerchant,
		Note:                note,
		SourceAccountID:     c.FromID,
		TransferToAccountID: c.ToID,
		IsConfirmed:         true,
	}
	if err := e.Validate(); err != nil {
		return err
	}
	id, err := tx.Upsert(KindExpense, e)
	if err != nil {
		return err
	}
	e.ID = id
	tx.Created(id)
	return m.Apply(tx, ExpenseEvent(e))
}

// requireAccounts checks that every leg of a transfer is bound, so both legs
// move or neither does.
func requireAccounts(tx *Tx, field string, ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return core.Invalid(field, core.ErrMissingField)
		}
		if tx.Account(id) == nil {
			return core.NotFound("account", id)
		}
	}
	return nil
}

// ApplySuggestion applies an advisory categorization. The target may have
// been deleted while the suggestion was in flight; that is not an error.
type ApplySuggestion struct {
	ExpenseID   string
	Category    core.Category
	SubCategory string
	Merchant    string
}

func (ApplySuggestion) Name() string { return "ApplySuggestion" }

func (c ApplySuggestion) Execute(tx *Tx, _ Mutator) error {
	cur := tx.Expense(c.ExpenseID)
	if cur == nil {
		return nil
	}
	if !c.Category.IsValid() {
		return core.Invalid("category", core.ErrInvalidCategory)
	}
	cur.Category = c.Category
	cur.SubCategory = c.SubCategory
	if strings.TrimSpace(c.Merchant) != "" {
		cur.Merchant = c.Merchant
	}
	cur.IsAIUpgraded = true
	cur.IsConfirmed = true
	tx.Touch()
	Propagate(tx, cur.ID, cur.Category, cur.SubCategory, cur.Merchant)
	return nil
}
