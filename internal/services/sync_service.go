package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"vault/internal/cloud"
	"vault/internal/core"
	"vault/internal/ledger"
	"vault/internal/snapshot"
	"vault/internal/storage"
)

// ErrSyncDisabled is returned when no cloud backend is configured.
var ErrSyncDisabled = errors.New("cloud sync is not configured")

// PushResult describes one upload.
type PushResult struct {
	Backend    string    `json:"backend"`
	Revision   int64     `json:"revision"`
	SnapshotID string    `json:"snapshotId"`
	SyncedAt   time.Time `json:"syncedAt"`
	Bytes      int       `json:"bytes"`
}

// PullResult describes one download.
type PullResult struct {
	Backend        string `json:"backend"`
	Found          bool   `json:"found"`
	RemoteRevision int64  `json:"remoteRevision"`
	SnapshotID     string `json:"snapshotId,omitempty"`
	Revision       int64  `json:"revision"`
}

// SyncService pushes the ledger snapshot to a cloud transport and pulls it
// back. Concurrent pushes share one upload.
type SyncService struct {
	vault     *VaultService
	transport cloud.Transport
	token     string
	group     singleflight.Group
	now       func() time.Time
}

func NewSyncService(vault *VaultService, transport cloud.Transport, token string) *SyncService {
	return &SyncService{
		vault:     vault,
		transport: transport,
		token:     token,
		now:       time.Now,
	}
}

// Enabled reports whether a transport is configured.
func (s *SyncService) Enabled() bool {
	return s.transport != nil
}

// Push uploads the current snapshot. On failure a notification is added and
// the last sync stamp is left untouched.
func (s *SyncService) Push(ctx context.Context) (PushResult, error) {
	if s.transport == nil {
		return PushResult{}, ErrSyncDisabled
	}
	v, err, shared := s.group.Do("push", func() (any, error) {
		return s.push(ctx)
	})
	if shared {
		slog.DebugContext(ctx, "Joined in-flight snapshot upload")
	}
	if err != nil {
		return PushResult{}, err
	}
	return v.(PushResult), nil
}

func (s *SyncService) push(ctx context.Context) (PushResult, error) {
	snap := s.vault.Snapshot()
	snap.SnapshotID = uuid.NewString()
	data, err := snapshot.Encode(snap)
	if err != nil {
		return PushResult{}, fmt.Errorf("encode snapshot: %w", err)
	}

	syncedAt, err := s.transport.Upload(ctx, s.token, data)
	if err != nil {
		s.recordUpload(ctx, snap.Revision, err)
		s.vault.Notify(ctx, "Sync", "Cloud Sync Failed", err.Error(), core.SeverityError)
		slog.ErrorContext(ctx, "Snapshot upload failed",
			"backend", s.transport.Name(),
			"revision", snap.Revision,
			"error", err)
		return PushResult{}, err
	}
	if syncedAt.IsZero() {
		syncedAt = s.now()
	}

	if _, err := s.vault.Execute(ctx, ledger.RecordSync{At: syncedAt, Revision: snap.Revision, SnapshotID: snap.SnapshotID}); err != nil {
		return PushResult{}, fmt.Errorf("record sync: %w", err)
	}
	s.recordUpload(ctx, snap.Revision, nil)

	slog.InfoContext(ctx, "Snapshot uploaded",
		"backend", s.transport.Name(),
		"revision", snap.Revision,
		"snapshot_id", snap.SnapshotID,
		"bytes", len(data))
	return PushResult{
		Backend:    s.transport.Name(),
		Revision:   snap.Revision,
		SnapshotID: snap.SnapshotID,
		SyncedAt:   syncedAt,
		Bytes:      len(data),
	}, nil
}

// Pull downloads the remote snapshot and restores it wholesale. When the
// local ledger has edits that were never uploaded and the remote is not the
// snapshot it last synced with, Pull refuses with core.ErrSyncConflict unless
// force is set.
func (s *SyncService) Pull(ctx context.Context, force bool) (PullResult, error) {
	if s.transport == nil {
		return PullResult{}, ErrSyncDisabled
	}
	res := PullResult{Backend: s.transport.Name()}

	data, found, err := s.transport.Download(ctx, s.token)
	if err != nil {
		s.vault.Notify(ctx, "Sync", "Cloud Restore Failed", err.Error(), core.SeverityError)
		return res, err
	}
	if !found {
		slog.InfoContext(ctx, "No remote snapshot to restore", "backend", s.transport.Name())
		return res, nil
	}
	res.Found = true

	remote, err := snapshot.Decode(data)
	if err != nil {
		return res, err
	}
	res.RemoteRevision = remote.Revision
	res.SnapshotID = remote.SnapshotID

	local := s.vault.Snapshot()
	if !force && Conflicts(local, remote) {
		slog.WarnContext(ctx, "Refusing to overwrite unsynced local edits",
			"local_revision", local.Revision,
			"last_synced_revision", local.Settings.LastSyncedRevision,
			"last_synced_snapshot", local.Settings.LastSyncedSnapshotID,
			"remote_snapshot", remote.SnapshotID)
		return res, fmt.Errorf("pull revision %d over local revision %d: %w",
			remote.Revision, local.Revision, core.ErrSyncConflict)
	}

	rev, err := s.vault.Restore(ctx, remote, "pull")
	if err != nil {
		return res, err
	}
	res.Revision = rev

	if _, err := s.vault.Execute(ctx, ledger.RecordSync{At: s.now(), Revision: rev, SnapshotID: remote.SnapshotID}); err != nil {
		return res, fmt.Errorf("record sync: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot restored from cloud",
		"backend", s.transport.Name(),
		"remote_revision", remote.Revision,
		"revision", rev,
		"forced", force)
	return res, nil
}

// Conflicts reports whether restoring remote would discard local edits that
// were never uploaded. Revisions are counted per device, so the remote is
// recognised by its snapshot id only; a remote without one is never assumed
// to be the last synced snapshot.
func Conflicts(local, remote core.Snapshot) bool {
	if local.Revision <= local.Settings.LastSyncedRevision {
		return false
	}
	return remote.SnapshotID == "" || remote.SnapshotID != local.Settings.LastSyncedSnapshotID
}

func (s *SyncService) recordUpload(ctx context.Context, revision int64, uploadErr error) {
	repo := s.vault.Repository()
	if repo == nil {
		return
	}
	u := storage.Upload{
		Revision: revision,
		Backend:  s.transport.Name(),
		Status:   storage.UploadOK,
		SyncedAt: s.now(),
	}
	if uploadErr != nil {
		u.Status = storage.UploadFailed
		u.Error = uploadErr.Error()
	}
	if err := repo.RecordUpload(ctx, u); err != nil {
		slog.WarnContext(ctx, "Failed to record upload", "revision", revision, "error", err)
	}
}
