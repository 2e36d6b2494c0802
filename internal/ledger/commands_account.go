package ledger

import (
	"fmt"

	"vault/internal/core"
)

type AddIncome struct {
	Income core.Income
}

func (AddIncome) Name() string { return "AddIncome" }

func (c AddIncome) Execute(tx *Tx, m Mutator) error {
	i := c.Income
	if i.Type == "" {
		i.Type = core.OtherIncome
	}
	if err := i.Validate(); err != nil {
		return err
	}
	if i.ID != "" && tx.Income(i.ID) != nil {
		return fmt.Errorf("income %q already exists", i.ID)
	}
	id, err := tx.Upsert(KindIncome, i)
	if err != nil {
		return err
	}
	i.ID = id
	tx.Created(id)
	return m.Apply(tx, IncomeEvent(i))
}

type IncomePatch struct {
	Amount          *int64           `json:"amount,omitempty"`
	Date            *core.Date       `json:"date,omitempty"`
	Type            *core.IncomeType `json:"type,omitempty"`
	Note            *string          `json:"note,omitempty"`
	TargetAccountID *string          `json:"targetAccountId,omitempty"`
}

// UpdateIncome edits an income, moving its balance effect when the amount
// or the target account changes.
type UpdateIncome struct {
	ID    string
	Patch IncomePatch
}

func (UpdateIncome) Name() string { return "UpdateIncome" }

func (c UpdateIncome) Execute(tx *Tx, m Mutator) error {
	cur := tx.Income(c.ID)
	if cur == nil {
		return core.NotFound("income", c.ID)
	}
	old := *cur
	next := old
	if c.Patch.Amount != nil {
		next.Amount = *c.Patch.Amount
	}
	if c.Patch.Date != nil {
		next.Date = *c.Patch.Date
	}
	if c.Patch.Type != nil {
		next.Type = *c.Patch.Type
	}
	if c.Patch.Note != nil {
		next.Note = *c.Patch.Note
	}
	if c.Patch.TargetAccountID != nil {
		next.TargetAccountID = *c.Patch.TargetAccountID
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*cur = next
	tx.Touch()
	if old.Amount == next.Amount && old.TargetAccountID == next.TargetAccountID {
		return nil
	}
	if err := m.Apply(tx, IncomeEvent(old).Reverse()); err != nil {
		return err
	}
	return m.Apply(tx, IncomeEvent(next))
}

type DeleteIncome struct {
	ID string
}

func (DeleteIncome) Name() string { return "DeleteIncome" }

func (c DeleteIncome) Execute(tx *Tx, m Mutator) error {
	cur := tx.Income(c.ID)
	if cur == nil {
		return core.NotFound("income", c.ID)
	}
	i := *cur
	if err := m.Apply(tx, IncomeEvent(i).Reverse()); err != nil {
		return err
	}
	_, err := tx.Remove(KindIncome, i.ID)
	return err
}

// AddAccount creates an account. Its value is the opening balance.
type AddAccount struct {
	Account core.Account
}

func (AddAccount) Name() string { return "AddAccount" }

func (c AddAccount) Execute(tx *Tx, _ Mutator) error {
	a := c.Account
	if a.Category == "" {
		a.Category = core.AccountOther
	}
	if a.Alias == "" {
		a.Alias = a.Name
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID != "" && tx.Account(a.ID) != nil {
		return fmt.Errorf("account %q already exists", a.ID)
	}
	if a.Date.IsZero() {
		a.Date = tx.Today()
	}
	id, err := tx.Upsert(KindAccount, a)
	if err != nil {
		return err
	}
	tx.Created(id)
	return nil
}

// UpdateAccount changes descriptive fields. The stored value is kept; use
// AdjustAccountBalance to reconcile it.
type UpdateAccount struct {
	Account core.Account
}

func (UpdateAccount) Name() string { return "UpdateAccount" }

func (c UpdateAccount) Execute(tx *Tx, _ Mutator) error {
	cur := tx.Account(c.Account.ID)
	if cur == nil {
		return core.NotFound("account", c.Account.ID)
	}
	a := c.Account
	if a.Category == "" {
		a.Category = cur.Category
	}
	a.Value = cur.Value
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := tx.Upsert(KindAccount, a)
	return err
}

// AdjustAccountBalance reconciles an account to an observed value through
// a single balance event.
type AdjustAccountBalance struct {
	ID    string
	Value int64
}

func (AdjustAccountBalance) Name() string { return "AdjustAccountBalance" }

func (c AdjustAccountBalance) Execute(tx *Tx, m Mutator) error {
	acc := tx.Account(c.ID)
	if acc == nil {
		return core.NotFound("account", c.ID)
	}
	if err := core.ValidateBalance(c.Value); err != nil {
		return core.Invalid("value", err)
	}
	diff := c.Value - acc.Value
	if diff == 0 {
		return nil
	}
	// diff is expressed in the account's own sign convention.
	flow := Inflow
	if (acc.Polarity == core.Asset) != (diff > 0) {
		flow = Outflow
	}
	if diff < 0 {
		diff = -diff
	}
	return m.Apply(tx, BalanceEvent{Kind: BalanceReconciled, Amount: diff, AccountID: c.ID, Flow: flow})
}

// DeleteAccount removes an account together with every expense and income
// bound to it. Other accounts touched by those entries are left as they are.
type DeleteAccount struct {
	ID string
}

func (DeleteAccount) Name() string { return "DeleteAccount" }

func (c DeleteAccount) Execute(tx *Tx, _ Mutator) error {
	acc := tx.Account(c.ID)
	if acc == nil {
		return core.NotFound("account", c.ID)
	}
	name := acc.Name

	before := len(tx.state.Expenses) + len(tx.state.Incomes)
	tx.state.Expenses = filter(tx.state.Expenses, func(e core.Expense) bool { return e.SourceAccountID != c.ID })
	tx.state.Incomes = filter(tx.state.Incomes, func(i core.Income) bool { return i.TargetAccountID != c.ID })
	tx.Affect(before - len(tx.state.Expenses) - len(tx.state.Incomes))

	if _, err := tx.Remove(KindAccount, c.ID); err != nil {
		return err
	}
	tx.Notify("Activity", "Account Deleted",
		fmt.Sprintf("%s and its statement entries were removed.", name), core.SeverityError)
	return nil
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
