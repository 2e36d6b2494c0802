// Package services orchestrates the ledger with its collaborators: local
// persistence, queued cloud sync, category suggestions and the recurring tick.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vault/internal/core"
	"vault/internal/ledger"
	"vault/internal/storage"
)

// SyncPublisher announces a committed revision to the sync worker.
type SyncPublisher interface {
	PublishSnapshotSync(ctx context.Context, revision int64, reason string) error
	Close() error
}

// VaultService runs ledger commands and persists every committed change
// before returning.
type VaultService struct {
	dispatcher *ledger.Dispatcher
	repo       storage.Repository
	publisher  SyncPublisher
}

// NewVaultService wires a dispatcher to its repository. publisher may be nil,
// in which case nothing is queued for upload.
func NewVaultService(dispatcher *ledger.Dispatcher, repo storage.Repository, publisher SyncPublisher) *VaultService {
	return &VaultService{
		dispatcher: dispatcher,
		repo:       repo,
		publisher:  publisher,
	}
}

// Load restores the persisted snapshot, if any, into the ledger.
func (s *VaultService) Load(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	snap, found, err := s.repo.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		slog.InfoContext(ctx, "No persisted snapshot, starting with an empty vault")
		return false, nil
	}
	s.dispatcher.Restore(ctx, snap)
	return true, nil
}

// Execute dispatches cmd and persists the result. A persistence failure is
// returned even though the in-memory ledger already moved on, so callers can
// surface it; the next committed command writes the full state again.
func (s *VaultService) Execute(ctx context.Context, cmd ledger.Command) (ledger.Result, error) {
	res, err := s.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		return res, err
	}
	if !res.Committed {
		return res, nil
	}

	if err := s.persist(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to persist snapshot",
			"command", res.Command,
			"revision", res.Revision,
			"error", err)
		return res, err
	}

	if res.Dirty {
		if err := s.publishSync(ctx, res.Revision, res.Command); err != nil {
			// Local state is saved; the next dirty command queues a newer revision.
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"revision", res.Revision,
				"error", err)
		}
	}
	return res, nil
}

// Restore replaces the ledger with snap and persists it.
func (s *VaultService) Restore(ctx context.Context, snap core.Snapshot, reason string) (int64, error) {
	rev := s.dispatcher.Restore(ctx, snap)
	if err := s.persist(ctx); err != nil {
		return rev, err
	}
	if err := s.publishSync(ctx, rev, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"revision", rev,
			"error", err)
	}
	return rev, nil
}

// Notify adds a notification. Failures are only logged: notifications are
// the error channel of last resort.
func (s *VaultService) Notify(ctx context.Context, kind, title, message string, severity core.Severity) {
	_, err := s.Execute(ctx, ledger.AddNotification{Notification: core.Notification{
		Kind:     kind,
		Title:    title,
		Message:  message,
		Severity: severity,
	}})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to add notification", "title", title, "error", err)
	}
}

// Snapshot returns a copy of the current ledger state.
func (s *VaultService) Snapshot() core.Snapshot {
	return s.dispatcher.Store().Snapshot()
}

// Store gives read access to the ledger.
func (s *VaultService) Store() *ledger.Store {
	return s.dispatcher.Store()
}

// Repository exposes the persistence layer for sync bookkeeping.
func (s *VaultService) Repository() storage.Repository {
	return s.repo
}

// Queued reports whether uploads are delegated to the sync worker.
func (s *VaultService) Queued() bool {
	return s.publisher != nil
}

func (s *VaultService) persist(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *VaultService) publishSync(ctx context.Context, revision int64, reason string) error {
	if s.publisher == nil {
		return nil
	}
	if !s.dispatcher.Store().Settings().IsCloudSyncEnabled {
		slog.DebugContext(ctx, "Cloud sync disabled, not queueing upload", "revision", revision)
		return nil
	}
	return s.publisher.PublishSnapshotSync(ctx, revision, reason)
}

// Close closes the repository and the publisher.
func (s *VaultService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close vault service: %w", errors.Join(errs...))
	}
	return nil
}
