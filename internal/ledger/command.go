package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vault/internal/core"
)

// Command is one ledger mutation. Execute runs inside a transaction; any
// error discards every change the command made.
type Command interface {
	Name() string
	Execute(tx *Tx, m Mutator) error
}

// Result describes a committed (or rejected) command.
type Result struct {
	Command   string   `json:"command"`
	Revision  int64    `json:"revision"`
	Committed bool     `json:"committed"`
	Dirty     bool     `json:"-"`
	IDs       []string `json:"ids,omitempty"`
	Affected  int      `json:"affected"`
	Skipped   int      `json:"skipped"`
	Warnings  []error  `json:"-"`
	Errors    []error  `json:"-"`
}

// WarningMessages flattens the warnings for transport.
func (r Result) WarningMessages() []string {
	return messages(r.Warnings)
}

// ErrorMessages flattens the per-entry errors for transport.
func (r Result) ErrorMessages() []string {
	return messages(r.Errors)
}

func messages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// Dispatcher is the only entry point for ledger mutations. Commands are
// processed one at a time, each to completion.
type Dispatcher struct {
	store   *Store
	mutator Mutator
}

func NewDispatcher(store *Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Store returns the underlying store for read access.
func (d *Dispatcher) Store() *Store { return d.store }

// Dispatch executes cmd atomically.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	if cmd == nil {
		return Result{}, errors.New("dispatch: nil command")
	}
	if err := ctx.Err(); err != nil {
		return Result{Command: cmd.Name()}, err
	}

	start := time.Now()
	tx, err := d.store.Apply(func(tx *Tx) error {
		return cmd.Execute(tx, d.mutator)
	})
	res := Result{
		Command:  cmd.Name(),
		Revision: tx.revision,
		IDs:      tx.created,
		Affected: tx.affected,
		Skipped:  tx.skipped,
		Warnings: tx.warnings,
		Errors:   tx.errs,
	}
	if err != nil {
		slog.WarnContext(ctx, "Command rejected",
			"command", cmd.Name(),
			"error", err)
		return res, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	res.Committed = tx.changed
	res.Dirty = tx.dirty

	for _, w := range tx.warnings {
		var unbound *core.UnboundReferenceError
		if errors.As(w, &unbound) {
			slog.WarnContext(ctx, "Balance event skipped for unbound account",
				"command", cmd.Name(),
				"account_id", unbound.ID)
		}
	}
	slog.DebugContext(ctx, "Command applied",
		"command", cmd.Name(),
		"revision", res.Revision,
		"committed", res.Committed,
		"affected", res.Affected,
		"skipped", res.Skipped,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// Restore replaces the whole ledger with an already decoded snapshot.
func (d *Dispatcher) Restore(ctx context.Context, snap core.Snapshot) int64 {
	rev := d.store.Restore(snap)
	slog.InfoContext(ctx, "Ledger restored",
		"revision", rev,
		"expenses", len(snap.Expenses),
		"accounts", len(snap.WealthItems))
	return rev
}
