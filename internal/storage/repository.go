// Package storage persists the vault snapshot locally and keeps a log of
// cloud uploads.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"vault/internal/core"
	"vault/internal/snapshot"

	_ "modernc.org/sqlite"
)

// ErrStaleRevision is returned by Save when the stored snapshot carries a
// newer revision than the one being written.
var ErrStaleRevision = errors.New("stored snapshot has a newer revision")

type UploadStatus string

const (
	UploadOK     UploadStatus = "ok"
	UploadFailed UploadStatus = "failed"
)

// Upload is one attempt to push the snapshot to a cloud backend.
type Upload struct {
	Revision int64        `json:"revision"`
	Backend  string       `json:"backend"`
	Status   UploadStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
	SyncedAt time.Time    `json:"syncedAt"`
}

// Repository is the durable local store.
type Repository interface {
	// Load returns the stored snapshot; found is false on a fresh store.
	Load(ctx context.Context) (snap core.Snapshot, found bool, err error)
	// Save replaces the stored snapshot unless it is newer than snap.
	Save(ctx context.Context, snap core.Snapshot) error
	RecordUpload(ctx context.Context, u Upload) error
	// LastUpload returns the most recent successful upload.
	LastUpload(ctx context.Context) (Upload, bool, error)
	History(ctx context.Context, limit int) ([]Upload, error)
	Close() error
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "migration_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements Repository. A stored document that no longer decodes is
// reported as a core.RestoreParseError.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, bool, error) {
	row, err := r.queries.GetSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("get snapshot: %w", err)
	}

	snap, err := snapshot.Decode([]byte(row.Document))
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Revision = row.Revision

	slog.DebugContext(ctx, "Snapshot loaded from SQLite",
		"revision", row.Revision,
		"schema_version", row.SchemaVersion,
		"updated_at", row.UpdatedAt)
	return snap, true, nil
}

// Save implements Repository.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) error {
	doc, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	stored, err := q.GetSnapshotRevision(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("get snapshot revision: %w", err)
	case stored > snap.Revision:
		return fmt.Errorf("save revision %d over %d: %w", snap.Revision, stored, ErrStaleRevision)
	}

	if err := q.UpsertSnapshot(ctx, UpsertSnapshotParams{
		Revision:      snap.Revision,
		SchemaVersion: core.SchemaVersion,
		Document:      string(doc),
		UpdatedAt:     r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"revision", snap.Revision,
		"bytes", len(doc))
	return nil
}

// RecordUpload implements Repository.
func (r *SQLiteRepository) RecordUpload(ctx context.Context, u Upload) error {
	if u.SyncedAt.IsZero() {
		u.SyncedAt = r.now()
	}
	if u.Status == "" {
		u.Status = UploadOK
	}
	err := r.queries.InsertSyncLog(ctx, SyncLog{
		Revision: u.Revision,
		Backend:  u.Backend,
		Status:   string(u.Status),
		Error:    u.Error,
		SyncedAt: u.SyncedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}

	if u.Status == UploadFailed {
		slog.WarnContext(ctx, "Snapshot upload recorded as failed",
			"revision", u.Revision, "backend", u.Backend, "error", u.Error)
	}
	return nil
}

// LastUpload implements Repository.
func (r *SQLiteRepository) LastUpload(ctx context.Context) (Upload, bool, error) {
	row, err := r.queries.GetLastSuccessfulSync(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, false, nil
	}
	if err != nil {
		return Upload{}, false, fmt.Errorf("get last sync: %w", err)
	}
	return uploadFromRow(row), true, nil
}

// History implements Repository.
func (r *SQLiteRepository) History(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListSyncLog(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	out := make([]Upload, len(rows))
	for i, row := range rows {
		out[i] = uploadFromRow(row)
	}
	return out, nil
}

func uploadFromRow(row SyncLog) Upload {
	return Upload{
		Revision: row.Revision,
		Backend:  row.Backend,
		Status:   UploadStatus(row.Status),
		Error:    row.Error,
		SyncedAt: row.SyncedAt,
	}
}
