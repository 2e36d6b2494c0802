// Package worker uploads persisted snapshots to the cloud on behalf of the
// vault server when sync is queued through AMQP.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vault/internal/amqp"
	"vault/internal/cloud"
	"vault/internal/snapshot"
	"vault/internal/storage"
)

// SnapshotSyncWorker uploads the snapshot stored in the shared repository.
// Messages only carry a revision, so several queued messages collapse into
// one upload of whatever is stored when the first of them is handled.
type SnapshotSyncWorker struct {
	repo      storage.Repository
	transport cloud.Transport
	token     string
	now       func() time.Time

	// mu serializes uploads between the consumer and the periodic check.
	mu sync.Mutex
}

func NewSnapshotSyncWorker(repo storage.Repository, transport cloud.Transport, token string) *SnapshotSyncWorker {
	return &SnapshotSyncWorker{
		repo:      repo,
		transport: transport,
		token:     token,
		now:       time.Now,
	}
}

// HandleSnapshotSync processes a single sync message from AMQP.
func (w *SnapshotSyncWorker) HandleSnapshotSync(ctx context.Context, msg *amqp.SnapshotSyncMessage) error {
	slog.InfoContext(ctx, "Processing snapshot sync message",
		"revision", msg.Revision,
		"reason", msg.Reason)

	uploaded, err := w.sync(ctx, msg.Revision)
	if err != nil {
		return fmt.Errorf("sync snapshot revision %d: %w", msg.Revision, err)
	}
	if !uploaded {
		slog.DebugContext(ctx, "Skipping stale sync message", "revision", msg.Revision)
	}
	return nil
}

// StartupSyncCheck uploads the stored snapshot when it is newer than the last
// successful upload. It recovers from messages lost while the worker was
// down, and runs again on every periodic tick.
func (w *SnapshotSyncWorker) StartupSyncCheck(ctx context.Context) error {
	uploaded, err := w.sync(ctx, 0)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if !uploaded {
		slog.InfoContext(ctx, "No pending snapshot found")
	}
	return nil
}

// sync uploads the stored snapshot unless an upload of at least its revision
// (and at least minRevision) already succeeded on this backend.
func (w *SnapshotSyncWorker) sync(ctx context.Context, minRevision int64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, found, err := w.repo.LastUpload(ctx)
	if err != nil {
		return false, fmt.Errorf("read last upload: %w", err)
	}
	if minRevision > 0 && found && last.Backend == w.transport.Name() && last.Revision >= minRevision {
		return false, nil
	}

	snap, ok, err := w.repo.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}
	if found && last.Backend == w.transport.Name() && last.Revision >= snap.Revision {
		return false, nil
	}

	snap.SnapshotID = uuid.NewString()
	data, err := snapshot.Encode(snap)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}

	start := time.Now()
	syncedAt, uploadErr := w.transport.Upload(ctx, w.token, data)
	if syncedAt.IsZero() {
		syncedAt = w.now()
	}
	u := storage.Upload{
		Revision: snap.Revision,
		Backend:  w.transport.Name(),
		Status:   storage.UploadOK,
		SyncedAt: syncedAt,
	}
	if uploadErr != nil {
		u.Status = storage.UploadFailed
		u.Error = uploadErr.Error()
	}
	if err := w.repo.RecordUpload(ctx, u); err != nil {
		slog.ErrorContext(ctx, "Failed to record upload", "revision", snap.Revision, "error", err)
	}
	if uploadErr != nil {
		slog.ErrorContext(ctx, "Snapshot upload failed",
			"backend", w.transport.Name(),
			"revision", snap.Revision,
			"error", uploadErr)
		return false, uploadErr
	}

	slog.InfoContext(ctx, "Snapshot uploaded",
		"backend", w.transport.Name(),
		"revision", snap.Revision,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return true, nil
}
