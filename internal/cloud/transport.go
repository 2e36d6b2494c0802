// Package cloud moves the serialized snapshot to and from a remote backend.
// Every backend stores a single object under snapshot.CloudFileName.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vault/internal/core"
)

// DefaultTimeout bounds every upload and download.
const DefaultTimeout = 20 * time.Second

// Transport is an opaque snapshot store. token is the caller's bearer token;
// backends that authenticate with their own credentials ignore it.
type Transport interface {
	Name() string
	Upload(ctx context.Context, token string, data []byte) (syncedAt time.Time, err error)
	// Download returns found=false when no snapshot has been uploaded yet.
	Download(ctx context.Context, token string) (data []byte, found bool, err error)
}

var ErrNoToken = errors.New("access token required")

// Guarded applies a deadline to every call and reports failures as
// *core.TransportError.
type Guarded struct {
	next    Transport
	timeout time.Duration
}

func Guard(t Transport, timeout time.Duration) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guarded{next: t, timeout: timeout}
}

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) Upload(ctx context.Context, token string, data []byte) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	at, err := g.next.Upload(ctx, token, data)
	if err != nil {
		return time.Time{}, g.fail(ctx, "upload", err)
	}
	slog.DebugContext(ctx, "Snapshot uploaded",
		"backend", g.next.Name(),
		"bytes", len(data),
		"duration", time.Since(start))
	return at, nil
}

func (g *Guarded) Download(ctx context.Context, token string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data, found, err := g.next.Download(ctx, token)
	if err != nil {
		return nil, false, g.fail(ctx, "download", err)
	}
	return data, found, nil
}

func (g *Guarded) fail(ctx context.Context, op string, err error) error {
	var terr *core.TransportError
	if errors.As(err, &terr) {
		return err
	}
	if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	slog.WarnContext(ctx, "Cloud transport failed",
		"backend", g.next.Name(),
		"op", op,
		"error", err)
	return &core.TransportError{Backend: g.next.Name(), Op: op, Err: err}
}

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendDrive  = "drive"
	BackendGCS    = "gcs"
	BackendAzure  = "azure"
)

// Options configures New.
type Options struct {
	Backend         string
	Timeout         time.Duration
	GCSBucket       string
	GCSObjectPrefix string
	AzureBlobURL    string
	AzureContainer  string
}

// New builds the configured transport. A "none" backend yields nil and no
// error: the vault then runs without cloud sync.
func New(ctx context.Context, opts Options) (Transport, func() error, error) {
	var (
		t       Transport
		cleanup = func() error { return nil }
		err     error
	)
	switch opts.Backend {
	case "", BackendNone:
		return nil, cleanup, nil
	case BackendMemory:
		t = NewMemory()
	case BackendDrive:
		t = NewDrive()
	case BackendGCS:
		var g *GCS
		g, err = NewGCS(ctx, opts.GCSBucket, opts.GCSObjectPrefix)
		if err == nil {
			t, cleanup = g, g.Close
		}
	case BackendAzure:
		t, err = NewAzure(opts.AzureBlobURL, opts.AzureContainer)
	default:
		return nil, cleanup, fmt.Errorf("unsupported cloud backend %q", opts.Backend)
	}
	if err != nil {
		return nil, cleanup, fmt.Errorf("create %s transport: %w", opts.Backend, err)
	}
	slog.Info("Cloud transport configured", "backend", t.Name(), "timeout", opts.Timeout)
	return Guard(t, opts.Timeout), cleanup, nil
}
