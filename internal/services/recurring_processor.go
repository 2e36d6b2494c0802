package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vault/internal/core"
	"vault/internal/ledger"
	"vault/internal/schedule"
)

// RecurringProcessor rolls recurring items and repeating bills forward on a
// fixed interval.
type RecurringProcessor struct {
	vault      *VaultService
	interval   time.Duration
	maxCatchUp int
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringProcessor(vault *VaultService, interval time.Duration, maxCatchUp int) *RecurringProcessor {
	if maxCatchUp <= 0 {
		maxCatchUp = schedule.DefaultMaxCatchUp
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &RecurringProcessor{
		vault:      vault,
		interval:   interval,
		maxCatchUp: maxCatchUp,
		now:        time.Now,
	}
}

// ProcessDue runs one roll-forward for the given day.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ledger.Result, error) {
	if p.vault == nil {
		return ledger.Result{}, fmt.Errorf("processor not properly initialized")
	}
	today := core.DateOf(now)
	res, err := p.vault.Execute(ctx, ledger.RollForward{Today: today, MaxCatchUp: p.maxCatchUp})
	if err != nil {
		return res, fmt.Errorf("roll forward: %w", err)
	}
	if res.Affected > 0 || res.Skipped > 0 {
		slog.InfoContext(ctx, "Recurring roll-forward complete",
			"today", today.String(),
			"bills_changed", res.Affected,
			"materialized", len(res.IDs),
			"skipped_occurrences", res.Skipped,
			"revision", res.Revision)
	}
	return res, nil
}

// Start runs ProcessDue immediately and then on every tick until Stop or
// ctx ends.
func (p *RecurringProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("recurring processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	slog.InfoContext(ctx, "Recurring processor started",
		"interval", p.interval,
		"max_catch_up", p.maxCatchUp)
	return nil
}

// Stop signals the loop and waits for it to exit.
func (p *RecurringProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring processor stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor loop is active.
func (p *RecurringProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RecurringProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	tick := func() {
		if _, err := p.ProcessDue(ctx, p.now()); err != nil {
			slog.ErrorContext(ctx, "Recurring roll-forward failed", "error", err)
		}
	}
	tick()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
