package ledger

import (
	"fmt"

	"vault/internal/core"
)

// Flow is the direction money moves relative to an account.
type Flow int

const (
	Inflow Flow = iota + 1
	Outflow
)

func (f Flow) String() string {
	switch f {
	case Inflow:
		return "inflow"
	case Outflow:
		return "outflow"
	}
	return "unknown"
}

// Invert swaps inflow and outflow.
func (f Flow) Invert() Flow {
	if f == Inflow {
		return Outflow
	}
	return Inflow
}

type EventKind string

const (
	ExpenseCreated    EventKind = "ExpenseCreated"
	ExpenseDeleted    EventKind = "ExpenseDeleted"
	IncomeCreated     EventKind = "IncomeCreated"
	IncomeDeleted     EventKind = "IncomeDeleted"
	TransferCreated   EventKind = "TransferCreated"
	TransferDeleted   EventKind = "TransferDeleted"
	BalanceReconciled EventKind = "BalanceReconciled"
)

// BalanceEvent is a single request to move an account balance. Transfers
// carry both accounts and are applied as two legs.
type BalanceEvent struct {
	Kind           EventKind
	Amount         int64
	AccountID      string
	CounterpartyID string
	// Flow is only read for BalanceReconciled.
	Flow Flow
}

// ExpenseEvent is the balance effect of e. An expense carrying a destination
// account is a transfer whatever its labels say.
func ExpenseEvent(e core.Expense) BalanceEvent {
	if e.TransferToAccountID != "" {
		return BalanceEvent{Kind: TransferCreated, Amount: e.Amount, AccountID: e.SourceAccountID, CounterpartyID: e.TransferToAccountID}
	}
	return BalanceEvent{Kind: ExpenseCreated, Amount: e.Amount, AccountID: e.SourceAccountID}
}

func IncomeEvent(i core.Income) BalanceEvent {
	return BalanceEvent{Kind: IncomeCreated, Amount: i.Amount, AccountID: i.TargetAccountID}
}

// Reverse returns the event that undoes ev.
func (ev BalanceEvent) Reverse() BalanceEvent {
	out := ev
	switch ev.Kind {
	case ExpenseCreated:
		out.Kind = ExpenseDeleted
	case ExpenseDeleted:
		out.Kind = ExpenseCreated
	case IncomeCreated:
		out.Kind = IncomeDeleted
	case IncomeDeleted:
		out.Kind = IncomeCreated
	case TransferCreated:
		out.Kind = TransferDeleted
	case TransferDeleted:
		out.Kind = TransferCreated
	case BalanceReconciled:
		out.Flow = ev.Flow.Invert()
	}
	return out
}

// SignedDelta is the change in an account's stored value when amount flows
// in or out of it. Assets grow with inflows, liabilities with outflows.
func SignedDelta(polarity core.Polarity, flow Flow, amount int64) int64 {
	switch {
	case polarity == core.Asset && flow == Inflow:
		return amount
	case polarity == core.Asset && flow == Outflow:
		return -amount
	case polarity == core.Liability && flow == Outflow:
		return amount
	case polarity == core.Liability && flow == Inflow:
		return -amount
	}
	return 0
}

type leg struct {
	accountID string
	flow      Flow
}

func (ev BalanceEvent) legs() []leg {
	switch ev.Kind {
	case ExpenseCreated:
		return []leg{{ev.AccountID, Outflow}}
	case ExpenseDeleted:
		return []leg{{ev.AccountID, Inflow}}
	case IncomeCreated:
		return []leg{{ev.AccountID, Inflow}}
	case IncomeDeleted:
		return []leg{{ev.AccountID, Outflow}}
	case TransferCreated:
		return []leg{{ev.AccountID, Outflow}, {ev.CounterpartyID, Inflow}}
	case TransferDeleted:
		return []leg{{ev.AccountID, Inflow}, {ev.CounterpartyID, Outflow}}
	case BalanceReconciled:
		return []leg{{ev.AccountID, ev.Flow}}
	}
	return nil
}

// Mutator applies balance events to the accounts of a transaction.
type Mutator struct{}

// Apply moves the balances named by ev. Legs without an account id are
// ignored; legs whose account no longer exists are skipped with a warning.
func (Mutator) Apply(tx *Tx, ev BalanceEvent) error {
	if ev.Amount < 0 {
		return fmt.Errorf("balance event %s: negative amount %d", ev.Kind, ev.Amount)
	}
	legs := ev.legs()
	if legs == nil {
		return fmt.Errorf("balance event: unknown kind %q", ev.Kind)
	}
	for _, l := range legs {
		if l.accountID == "" || ev.Amount == 0 {
			continue
		}
		acc := tx.Account(l.accountID)
		if acc == nil {
			tx.Warn(&core.UnboundReferenceError{Kind: "account", ID: l.accountID})
			continue
		}
		acc.Value += SignedDelta(acc.Polarity, l.flow, ev.Amount)
		tx.Touch()
	}
	return nil
}
