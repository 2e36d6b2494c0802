package ledger

import (
	"slices"
	"time"

	"vault/internal/core"
)

// Tx is the working copy handed to a mutation. Pointers returned by its
// accessors point into the copy and are only valid until the mutation ends.
type Tx struct {
	state    core.Snapshot
	newID    func() string
	now      time.Time
	revision int64

	changed  bool
	dirty    bool
	created  []string
	affected int
	skipped  int
	warnings []error
	errs     []error
}

// Now is the wall clock captured when the mutation started.
func (tx *Tx) Now() time.Time { return tx.now }

// Today is Now truncated to a calendar day.
func (tx *Tx) Today() core.Date { return core.DateOf(tx.now) }

// NewID returns a fresh opaque id.
func (tx *Tx) NewID() string { return tx.newID() }

// State exposes the working copy for read-only helpers.
func (tx *Tx) State() *core.Snapshot { return &tx.state }

// Touch marks the ledger as changed. Use Bookkeep for changes that must not
// count as a new revision.
func (tx *Tx) Touch() {
	tx.changed = true
	tx.dirty = true
}

// Bookkeep marks a change that is committed without bumping the revision.
func (tx *Tx) Bookkeep() {
	tx.changed = true
}

// Created records the id of an entity made by the mutation.
func (tx *Tx) Created(id string) { tx.created = append(tx.created, id) }

// Warn records a non-fatal problem, e.g. an unbound account id.
func (tx *Tx) Warn(err error) { tx.warnings = append(tx.warnings, err) }

// Skip records a rejected entry of a batch.
func (tx *Tx) Skip(err error) {
	tx.skipped++
	tx.errs = append(tx.errs, err)
}

// Affect counts entities changed as a side effect (propagation, cascades).
func (tx *Tx) Affect(n int) { tx.affected += n }

// Upsert inserts or replaces an entity, assigning an id when it has none.
// An existing account keeps its stored value.
func (tx *Tx) Upsert(kind Kind, entity core.Entity) (string, error) {
	var id string
	switch v := entity.(type) {
	case core.Expense:
		if kind != KindExpense {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.Expenses = upsertItem(tx.state.Expenses, v)
		id = v.ID
	case core.Income:
		if kind != KindIncome {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.Incomes = upsertItem(tx.state.Incomes, v)
		id = v.ID
	case core.Account:
		if kind != KindAccount {
			return "", kindMismatch(kind, entity)
		}
		if cur := tx.Account(v.ID); cur != nil {
			v.Value = cur.Value
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.WealthItems = upsertItem(tx.state.WealthItems, v)
		id = v.ID
	case core.Bill:
		if kind != KindBill {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.Bills = upsertItem(tx.state.Bills, v)
		id = v.ID
	case core.BudgetItem:
		if kind != KindBudgetItem {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.BudgetItems = upsertItem(tx.state.BudgetItems, v)
		id = v.ID
	case core.Rule:
		if kind != KindRule {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.Rules = upsertItem(tx.state.Rules, v)
		id = v.ID
	case core.RecurringItem:
		if kind != KindRecurring {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.state.RecurringItems = upsertItem(tx.state.RecurringItems, v)
		id = v.ID
	case core.Notification:
		if kind != KindNotification {
			return "", kindMismatch(kind, entity)
		}
		v.ID = tx.ensureID(v.ID)
		tx.pushNotification(v)
		tx.Bookkeep()
		return v.ID, nil
	default:
		return "", kindMismatch(kind, entity)
	}
	tx.Touch()
	return id, nil
}

// Remove deletes an entity by id without any side effects.
func (tx *Tx) Remove(kind Kind, id string) (bool, error) {
	var removed bool
	switch kind {
	case KindExpense:
		tx.state.Expenses, removed = removeItem(tx.state.Expenses, id)
	case KindIncome:
		tx.state.Incomes, removed = removeItem(tx.state.Incomes, id)
	case KindAccount:
		tx.state.WealthItems, removed = removeItem(tx.state.WealthItems, id)
	case KindBill:
		tx.state.Bills, removed = removeItem(tx.state.Bills, id)
	case KindBudgetItem:
		tx.state.BudgetItems, removed = removeItem(tx.state.BudgetItems, id)
	case KindNotification:
		tx.state.Notifications, removed = removeItem(tx.state.Notifications, id)
	case KindRule:
		tx.state.Rules, removed = removeItem(tx.state.Rules, id)
	case KindRecurring:
		tx.state.RecurringItems, removed = removeItem(tx.state.RecurringItems, id)
	default:
		return false, kindMismatch(kind, nil)
	}
	if removed {
		tx.Touch()
	}
	return removed, nil
}

// List returns the working copy of a collection as entities.
func (tx *Tx) List(kind Kind) []core.Entity {
	return listOf(&tx.state, kind)
}

func (tx *Tx) Expense(id string) *core.Expense {
	return find(tx.state.Expenses, id)
}

func (tx *Tx) Income(id string) *core.Income {
	return find(tx.state.Incomes, id)
}

func (tx *Tx) Account(id string) *core.Account {
	return find(tx.state.WealthItems, id)
}

func (tx *Tx) Bill(id string) *core.Bill {
	return find(tx.state.Bills, id)
}

func (tx *Tx) BudgetItem(id string) *core.BudgetItem {
	return find(tx.state.BudgetItems, id)
}

func (tx *Tx) Recurring(id string) *core.RecurringItem {
	return find(tx.state.RecurringItems, id)
}

// Notify prepends a notification and trims the feed.
func (tx *Tx) Notify(kind, title, message string, severity core.Severity) {
	tx.pushNotification(core.Notification{
		ID:        tx.NewID(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: tx.now,
	})
	tx.Bookkeep()
}

// NotifyOnce is Notify under a fixed id. A notice already in the feed under
// that id is left alone, read state included.
func (tx *Tx) NotifyOnce(id, kind, title, message string, severity core.Severity) {
	if slices.ContainsFunc(tx.state.Notifications, func(n core.Notification) bool { return n.ID == id }) {
		return
	}
	tx.pushNotification(core.Notification{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		Severity:  severity,
		Timestamp: tx.now,
	})
	tx.Bookkeep()
}

func (tx *Tx) pushNotification(n core.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = tx.now
	}
	tx.state.Notifications = slices.Insert(tx.state.Notifications, 0, n)
	if len(tx.state.Notifications) > MaxNotifications {
		tx.state.Notifications = tx.state.Notifications[:MaxNotifications]
	}
}

func (tx *Tx) ensureID(id string) string {
	if id != "" {
		return id
	}
	return tx.NewID()
}

func find[T core.Entity](items []T, id string) *T {
	if i := indexOf(items, id); i >= 0 {
		return &items[i]
	}
	return nil
}
