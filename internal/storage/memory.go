package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"vault/internal/core"
	"vault/internal/snapshot"
)

// MemoryRepository keeps the encoded snapshot in process memory. It is used
// for development and tests; contents are lost on restart.
type MemoryRepository struct {
	mu       sync.Mutex
	doc      []byte
	revision int64
	uploads  []Upload
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Load(_ context.Context) (core.Snapshot, bool, error) {
	m.mu.Lock()
	doc, revision := m.doc, m.revision
	m.mu.Unlock()
	if doc == nil {
		return core.Snapshot{}, false, nil
	}
	snap, err := snapshot.Decode(doc)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Revision = revision
	return snap, true, nil
}

func (m *MemoryRepository) Save(_ context.Context, snap core.Snapshot) error {
	doc, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc != nil && m.revision > snap.Revision {
		return fmt.Errorf("save revision %d over %d: %w", snap.Revision, m.revision, ErrStaleRevision)
	}
	m.doc, m.revision = doc, snap.Revision
	return nil
}

func (m *MemoryRepository) RecordUpload(_ context.Context, u Upload) error {
	if u.SyncedAt.IsZero() {
		u.SyncedAt = time.Now()
	}
	if u.Status == "" {
		u.Status = UploadOK
	}
	m.mu.Lock()
	m.uploads = append(m.uploads, u)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) LastUpload(_ context.Context) (Upload, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.uploads) - 1; i >= 0; i-- {
		if m.uploads[i].Status == UploadOK {
			return m.uploads[i], true, nil
		}
	}
	return Upload{}, false, nil
}

func (m *MemoryRepository) History(_ context.Context, limit int) ([]Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.uploads)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Close() error { return nil }
