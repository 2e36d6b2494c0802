package core

import (
	"encoding/json"
	"slices"
	"time"
)

// SchemaVersion is the snapshot layout written by this build.
const SchemaVersion = 1

// Snapshot is the whole vault in one document. The same shape is used for
// local persistence, file export and cloud backup.
type Snapshot struct {
	SchemaVersion  int             `json:"schemaVersion"`
	Revision       int64           `json:"revision"`
	SnapshotID     string          `json:"snapshotId,omitempty"`
	Settings       Settings        `json:"settings"`
	Expenses       []Expense       `json:"expenses"`
	Incomes        []Income        `json:"incomes"`
	WealthItems    []Account       `json:"wealthItems"`
	Bills          []Bill          `json:"bills"`
	BudgetItems    []BudgetItem    `json:"budgetItems"`
	Notifications  []Notification  `json:"notifications"`
	Rules          []Rule          `json:"rules"`
	RecurringItems []RecurringItem `json:"recurringItems"`
	User           json.RawMessage `json:"user,omitempty"`
	Timestamp      time.Time       `json:"timestamp,omitzero"`
}

// EmptySnapshot is a fresh vault with default settings.
func EmptySnapshot() Snapshot {
	s := Snapshot{
		SchemaVersion: SchemaVersion,
		Settings:      DefaultSettings(),
	}
	s.Normalize()
	return s
}

// Normalize replaces nil collections with empty ones so the document always
// carries every key.
func (s *Snapshot) Normalize() {
	if s.Expenses == nil {
		s.Expenses = []Expense{}
	}
	if s.Incomes == nil {
		s.Incomes = []Income{}
	}
	if s.WealthItems == nil {
		s.WealthItems = []Account{}
	}
	if s.Bills == nil {
		s.Bills = []Bill{}
	}
	if s.BudgetItems == nil {
		s.BudgetItems = []BudgetItem{}
	}
	if s.Notifications == nil {
		s.Notifications = []Notification{}
	}
	if s.Rules == nil {
		s.Rules = []Rule{}
	}
	if s.RecurringItems == nil {
		s.RecurringItems = []RecurringItem{}
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Settings = s.Settings.Clone()
	out.Expenses = slices.Clone(s.Expenses)
	out.Incomes = slices.Clone(s.Incomes)
	out.WealthItems = slices.Clone(s.WealthItems)
	out.Bills = slices.Clone(s.Bills)
	out.BudgetItems = slices.Clone(s.BudgetItems)
	out.Notifications = slices.Clone(s.Notifications)
	out.Rules = slices.Clone(s.Rules)
	out.RecurringItems = slices.Clone(s.RecurringItems)
	out.User = slices.Clone(s.User)
	out.Normalize()
	return out
}

// NetWorth is assets minus liabilities.
func NetWorth(accounts []Account) int64 {
	var total int64
	for _, a := range accounts {
		switch a.Polarity {
		case Asset:
			total += a.Value
		case Liability:
			total -= a.Value
		}
	}
	return total
}
