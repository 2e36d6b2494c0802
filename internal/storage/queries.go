package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements used by SQLiteRepository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx runs the same statements inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SnapshotRow struct {
	Revision      int64
	SchemaVersion int64
	Document      string
	UpdatedAt     time.Time
}

const getSnapshot = `
SELECT revision, schema_version, document, updated_at
FROM snapshots
WHERE id = 1
`

func (q *Queries) GetSnapshot(ctx context.Context) (SnapshotRow, error) {
	var row SnapshotRow
	err := q.db.QueryRowContext(ctx, getSnapshot).Scan(
		&row.Revision,
		&row.SchemaVersion,
		&row.Document,
		&row.UpdatedAt,
	)
	return row, err
}

const getSnapshotRevision = `SELECT revision FROM snapshots WHERE id = 1`

func (q *Queries) GetSnapshotRevision(ctx context.Context) (int64, error) {
	var revision int64
	err := q.db.QueryRowContext(ctx, getSnapshotRevision).Scan(&revision)
	return revision, err
}

const upsertSnapshot = `
INSERT INTO snapshots (id, revision, schema_version, document, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    revision = excluded.revision,
    schema_version = excluded.schema_version,
    document = excluded.document,
    updated_at = excluded.updated_at
`

type UpsertSnapshotParams struct {
	Revision      int64
	SchemaVersion int64
	Document      string
	UpdatedAt     time.Time
}

func (q *Queries) UpsertSnapshot(ctx context.Context, arg UpsertSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, upsertSnapshot,
		arg.Revision,
		arg.SchemaVersion,
		arg.Document,
		arg.UpdatedAt,
	)
	return err
}

const insertSyncLog = `
INSERT INTO sync_log (revision, backend, status, error, synced_at)
VALUES (?, ?, ?, ?, ?)
`

type SyncLog struct {
	Revision int64
	Backend  string
	Status   string
	Error    string
	SyncedAt time.Time
}

func (q *Queries) InsertSyncLog(ctx context.Context, arg SyncLog) error {
	_, err := q.db.ExecContext(ctx, insertSyncLog,
		arg.Revision,
		arg.Backend,
		arg.Status,
		arg.Error,
		arg.SyncedAt,
	)
	return err
}

const getLastSuccessfulSync = `
SELECT revision, backend, status, error, synced_at
FROM sync_log
WHERE status = 'ok'
ORDER BY synced_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLastSuccessfulSync(ctx context.Context) (SyncLog, error) {
	var row SyncLog
	err := q.db.QueryRowContext(ctx, getLastSuccessfulSync).Scan(
		&row.Revision,
		&row.Backend,
		&row.Status,
		&row.Error,
		&row.SyncedAt,
	)
	return row, err
}

const listSyncLog = `
SELECT revision, backend, status, error, synced_at
FROM sync_log
ORDER BY synced_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListSyncLog(ctx context.Context, limit int64) ([]SyncLog, error) {
	rows, err := q.db.QueryContext(ctx, listSyncLog, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncLog
	for rows.Next() {
		var i SyncLog
		if err := rows.Scan(&i.Revision, &i.Backend, &i.Status, &i.Error, &i.SyncedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
