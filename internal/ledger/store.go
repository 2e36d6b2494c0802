// Package ledger owns every collection of the vault. State changes only
// through Store.Apply, which runs a mutation against a private working copy
// and swaps it in when the mutation succeeds, so an entry change and the
// balance change it implies are committed together or not at all.
package ledger

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vault/internal/core"
)

// Kind names a collection. The values are the snapshot document keys.
type Kind string

const (
	KindExpense      Kind = "expenses"
	KindIncome       Kind = "incomes"
	KindAccount      Kind = "wealthItems"
	KindBill         Kind = "bills"
	KindBudgetItem   Kind = "budgetItems"
	KindNotification Kind = "notifications"
	KindRule         Kind = "rules"
	KindRecurring    Kind = "recurringItems"
)

// Kinds lists every collection in document order.
var Kinds = []Kind{
	KindExpense, KindIncome, KindAccount, KindBill, KindBudgetItem,
	KindNotification, KindRule, KindRecurring,
}

// ParseKind accepts the document key of a collection.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// MaxNotifications caps the notification feed.
const MaxNotifications = 50

// Store is the single owner of ledger state.
type Store struct {
	mu       sync.RWMutex
	state    core.Snapshot
	revision int64
	newID    func() string
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// WithSettings seeds the settings of an empty store.
func WithSettings(settings core.Settings) Option {
	return func(s *Store) { s.state.Settings = settings }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		state: core.EmptySnapshot(),
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply runs fn against a working copy of the state while holding the write
// lock. The copy replaces the live state only when fn returns nil and changed
// something. The revision is bumped for ledger changes, not for bookkeeping
// such as notifications or sync stamps.
func (s *Store) Apply(fn func(*Tx) error) (*Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		state:    s.state.Clone(),
		newID:    s.newID,
		now:      s.now(),
		revision: s.revision,
	}
	if err := fn(tx); err != nil {
		return tx, err
	}
	if !tx.changed {
		return tx, nil
	}
	if tx.dirty {
		s.revision++
	}
	tx.revision = s.revision
	tx.state.Revision = s.revision
	s.state = tx.state
	return tx, nil
}

// Upsert inserts or replaces a single entity and returns its id.
func (s *Store) Upsert(kind Kind, entity core.Entity) (string, error) {
	var id string
	_, err := s.Apply(func(tx *Tx) error {
		var err error
		id, err = tx.Upsert(kind, entity)
		return err
	})
	return id, err
}

// Remove deletes an entity by id. It reports whether anything was removed.
func (s *Store) Remove(kind Kind, id string) (bool, error) {
	var removed bool
	_, err := s.Apply(func(tx *Tx) error {
		var err error
		removed, err = tx.Remove(kind, id)
		return err
	})
	return removed, err
}

// List returns a copy of a collection in stored order.
func (s *Store) List(kind Kind) []core.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOf(&s.state, kind)
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state.Clone()
	out.Revision = s.revision
	return out
}

// Revision is the number of committed ledger changes.
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Restore replaces every collection at once. The snapshot must already be
// decoded and migrated; parsing failures never reach the store.
func (s *Store) Restore(snap core.Snapshot) int64 {
	next := snap.Clone()
	next.SchemaVersion = core.SchemaVersion

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision = max(s.revision+1, snap.Revision)
	next.Revision = s.revision
	s.state = next
	return s.revision
}

// Expense returns a copy of one expense.
func (s *Store) Expense(id string) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Expenses, id); i >= 0 {
		return s.state.Expenses[i], true
	}
	return core.Expense{}, false
}

// Settings returns a copy of the settings.
func (s *Store) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Settings.Clone()
}

// Rules returns a copy of the rule list in priority order.
func (s *Store) Rules() []core.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Rules)
}

func listOf(state *core.Snapshot, kind Kind) []core.Entity {
	switch kind {
	case KindExpense:
		return entities(state.Expenses)
	case KindIncome:
		return entities(state.Incomes)
	case KindAccount:
		return entities(state.WealthItems)
	case KindBill:
		return entities(state.Bills)
	case KindBudgetItem:
		return entities(state.BudgetItems)
	case KindNotification:
		return entities(state.Notifications)
	case KindRule:
		return entities(state.Rules)
	case KindRecurring:
		return entities(state.RecurringItems)
	}
	return nil
}

func entities[T core.Entity](items []T) []core.Entity {
	out := make([]core.Entity, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func indexOf[T core.Entity](items []T, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(items, func(item T) bool { return item.EntityID() == id })
}

func upsertItem[T core.Entity](items []T, item T) []T {
	if i := indexOf(items, item.EntityID()); i >= 0 {
		items[i] = item
		return items
	}
	return append(items, item)
}

func removeItem[T core.Entity](items []T, id string) ([]T, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false
	}
	return slices.Delete(items, i, i+1), true
}

func kindMismatch(kind Kind, entity core.Entity) error {
	return fmt.Errorf("entity of type %T cannot be stored in %s", entity, kind)
}
