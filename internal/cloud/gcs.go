package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"vault/internal/snapshot"
)

// GCS stores the snapshot as one object in a Cloud Storage bucket. It uses
// Application Default Credentials. The token selects a per-user prefix.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("GCS bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCS) Name() string { return BackendGCS }

func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) objectName(token string) string {
	return objectKey(g.prefix, token)
}

func (g *GCS) Upload(ctx context.Context, token string, data []byte) (time.Time, error) {
	obj := g.client.Bucket(g.bucket).Object(g.objectName(token))

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return time.Time{}, fmt.Errorf("write GCS object: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return time.Time{}, fmt.Errorf("finalize upload: %w", err)
	}
	if attrs := w.Attrs(); attrs != nil && !attrs.Updated.IsZero() {
		return attrs.Updated.UTC(), nil
	}
	return time.Now().UTC(), nil
}

func (g *GCS) Download(ctx context.Context, token string) ([]byte, bool, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.objectName(token)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read GCS object: %w", err)
	}
	return data, true, nil
}

// objectKey places the snapshot under prefix, then under a folder derived
// from the token when one is given.
func objectKey(prefix, token string) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if owner := ownerFolder(token); owner != "" {
		parts = append(parts, owner)
	}
	parts = append(parts, snapshot.CloudFileName)
	return path.Join(parts...)
}

// ownerFolder keeps only characters that are safe in object names.
func ownerFolder(token string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, token)
}
