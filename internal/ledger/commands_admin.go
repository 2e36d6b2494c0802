package ledger

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"vault/internal/core"
)

// IngestBatch commits typed entries from a bulk import. Each entry stands on
// its own: an invalid one is skipped and counted, the rest still commit.
// Accounts are added first so entries of the same batch can bind to them.
type IngestBatch struct {
	Expenses []core.Expense
	Incomes  []core.Income
	Accounts []core.Account
}

func (IngestBatch) Name() string { return "IngestBatch" }

func (c IngestBatch) Execute(tx *Tx, m Mutator) error {
	var accounts, incomes, expenses int
	for i, a := range c.Accounts {
		if err := (AddAccount{Account: a}).Execute(tx, m); err != nil {
			tx.Skip(fmt.Errorf("account %d: %w", i, err))
			continue
		}
		accounts++
	}
	for i, in := range c.Incomes {
		if err := (AddIncome{Income: in}).Execute(tx, m); err != nil {
			tx.Skip(fmt.Errorf("income %d: %w", i, err))
			continue
		}
		incomes++
	}
	for i, e := range c.Expenses {
		if err := (AddExpense{Expense: e}).Execute(tx, m); err != nil {
			tx.Skip(fmt.Errorf("expense %d: %w", i, err))
			continue
		}
		expenses++
	}
	if accounts+incomes+expenses == 0 {
		return nil
	}
	tx.Notify("Activity", "Batch Ingested",
		fmt.Sprintf("Mapped %d outflows, %d inflows and %d accounts.", expenses, incomes, accounts),
		core.SeveritySuccess)
	return nil
}

// SettingsPatch lists the settings an update may change. Extra keys are
// merged into the preserved presentation settings.
type SettingsPatch struct {
	MonthlyIncome      *int64                     `json:"monthlyIncome,omitempty"`
	Split              *core.Split                `json:"split,omitempty"`
	Currency           *string                    `json:"currency,omitempty"`
	IsCloudSyncEnabled *bool                      `json:"isCloudSyncEnabled,omitempty"`
	Extra              map[string]json.RawMessage `json:"extra,omitempty"`
}

type UpdateSettings struct {
	Patch SettingsPatch
}

func (UpdateSettings) Name() string { return "UpdateSettings" }

func (c UpdateSettings) Execute(tx *Tx, _ Mutator) error {
	s := &tx.state.Settings
	p := c.Patch
	if p.MonthlyIncome != nil {
		if *p.MonthlyIncome < 0 {
			return core.Invalid("monthlyIncome", core.ErrInvalidAmount)
		}
		s.MonthlyIncome = *p.MonthlyIncome
	}
	if p.Split != nil {
		if err := p.Split.Validate(); err != nil {
			return err
		}
		s.Split = *p.Split
	}
	if p.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*p.Currency))
		if cur == "" {
			return core.Invalid("currency", core.ErrMissingField)
		}
		s.Currency = cur
	}
	if p.IsCloudSyncEnabled != nil {
		s.IsCloudSyncEnabled = *p.IsCloudSyncEnabled
	}
	if len(p.Extra) > 0 {
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage, len(p.Extra))
		}
		for k, v := range p.Extra {
			s.Extra[k] = v
		}
	}
	tx.Touch()
	return nil
}

// RecordSync stamps a successful cloud sync. Revision is the local revision
// that now matches the remote; SnapshotID identifies the remote document. It
// does not count as a ledger change.
type RecordSync struct {
	At         time.Time
	Revision   int64
	SnapshotID string
}

func (RecordSync) Name() string { return "RecordSync" }

func (c RecordSync) Execute(tx *Tx, _ Mutator) error {
	tx.state.Settings.LastSynced = c.At
	tx.state.Settings.LastSyncedRevision = c.Revision
	tx.state.Settings.LastSyncedSnapshotID = c.SnapshotID
	tx.Bookkeep()
	return nil
}

type AddNotification struct {
	Notification core.Notification
}

func (AddNotification) Name() string { return "AddNotification" }

func (c AddNotification) Execute(tx *Tx, _ Mutator) error {
	n := c.Notification
	if strings.TrimSpace(n.Title) == "" {
		return core.Invalid("title", core.ErrMissingField)
	}
	if n.Kind == "" {
		n.Kind = "Activity"
	}
	if n.Severity == "" {
		n.Severity = core.SeverityInfo
	}
	n.Read = false
	// Re-sending an id replaces the earlier notice.
	if n.ID != "" {
		tx.state.Notifications = slices.DeleteFunc(tx.state.Notifications, func(o core.Notification) bool { return o.ID == n.ID })
	}
	id, err := tx.Upsert(KindNotification, n)
	if err != nil {
		return err
	}
	tx.Created(id)
	return nil
}

// MarkNotificationsRead marks the given notifications read, or all of them
// when IDs is empty.
type MarkNotificationsRead struct {
	IDs []string
}

func (MarkNotificationsRead) Name() string { return "MarkNotificationsRead" }

func (c MarkNotificationsRead) Execute(tx *Tx, _ Mutator) error {
	n := 0
	for i := range tx.state.Notifications {
		note := &tx.state.Notifications[i]
		if note.Read || (len(c.IDs) > 0 && !slices.Contains(c.IDs, note.ID)) {
			continue
		}
		note.Read = true
		n++
	}
	if n > 0 {
		tx.Affect(n)
		tx.Bookkeep()
	}
	return nil
}

// PurgeMockData removes every demo entity. Balance effects of demo
// transactions on surviving real accounts are reversed.
type PurgeMockData struct{}

func (PurgeMockData) Name() string { return "PurgeMockData" }

func (PurgeMockData) Execute(tx *Tx, m Mutator) error {
	s := &tx.state
	before := len(s.Expenses) + len(s.Incomes) + len(s.WealthItems) + len(s.BudgetItems) + len(s.Bills) + len(s.RecurringItems)

	s.WealthItems = filter(s.WealthItems, func(a core.Account) bool { return !a.IsMock })
	for _, e := range s.Expenses {
		if e.IsMock {
			if err := m.Apply(tx, boundOnly(tx, ExpenseEvent(e).Reverse())); err != nil {
				return err
			}
		}
	}
	for _, i := range s.Incomes {
		if i.IsMock {
			if err := m.Apply(tx, boundOnly(tx, IncomeEvent(i).Reverse())); err != nil {
				return err
			}
		}
	}
	s.Expenses = filter(s.Expenses, func(e core.Expense) bool { return !e.IsMock })
	s.Incomes = filter(s.Incomes, func(i core.Income) bool { return !i.IsMock })
	s.BudgetItems = filter(s.BudgetItems, func(b core.BudgetItem) bool { return !b.IsMock })
	s.Bills = filter(s.Bills, func(b core.Bill) bool { return !b.IsMock })
	s.RecurringItems = filter(s.RecurringItems, func(r core.RecurringItem) bool { return !r.IsMock })

	after := len(s.Expenses) + len(s.Incomes) + len(s.WealthItems) + len(s.BudgetItems) + len(s.Bills) + len(s.RecurringItems)
	tx.Affect(before - after)
	s.Settings.HasLoadedMockData = true
	tx.Touch()
	return nil
}

// boundOnly drops the legs of ev whose account is gone, so purging demo
// accounts does not produce unbound warnings.
func boundOnly(tx *Tx, ev BalanceEvent) BalanceEvent {
	if ev.AccountID != "" && tx.Account(ev.AccountID) == nil {
		ev.AccountID = ""
	}
	if ev.CounterpartyID != "" && tx.Account(ev.CounterpartyID) == nil {
		ev.CounterpartyID = ""
	}
	return ev
}

// PurgeAll clears every collection. Settings are kept.
type PurgeAll struct{}

func (PurgeAll) Name() string { return "PurgeAll" }

func (PurgeAll) Execute(tx *Tx, _ Mutator) error {
	settings := tx.state.Settings
	user := tx.state.User
	tx.state = core.EmptySnapshot()
	tx.state.Settings = settings
	tx.state.User = user
	tx.Touch()
	return nil
}
