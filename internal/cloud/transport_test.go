package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault/internal/core"
)

type failing struct{ err error }

func (f failing) Name() string { return "failing" }
func (f failing) Upload(context.Context, string, []byte) (time.Time, error) {
	return time.Time{}, f.err
}
func (f failing) Download(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.err
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := Guard(NewMemory(), time.Second)

	_, found, err := tr.Download(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	at, err := tr.Upload(ctx, "alice", []byte(`{"revision":3}`))
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	data, found, err := tr.Download(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"revision":3}`, string(data))

	_, found, err = tr.Download(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, found, "uploads are per token")
}

func TestGuardTimesOut(t *testing.T) {
	slow := NewMemory()
	slow.Delay = time.Second
	tr := Guard(slow, 20*time.Millisecond)

	_, err := tr.Upload(context.Background(), "alice", []byte("{}"))

	var terr *core.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "memory", terr.Backend)
	assert.Equal(t, "upload", terr.Op)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGuardWrapsFailures(t *testing.T) {
	boom := errors.New("503 from upstream")
	tr := Guard(failing{err: boom}, time.Second)

	_, _, err := tr.Download(context.Background(), "alice")

	var terr *core.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "download", terr.Op)
	assert.True(t, errors.Is(err, boom))
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	tr, _, err := New(ctx, Options{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, _, err = New(ctx, Options{Backend: BackendMemory, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "memory", tr.Name())

	_, _, err = New(ctx, Options{Backend: "ftp"})
	assert.Error(t, err)

	_, _, err = New(ctx, Options{Backend: BackendGCS})
	assert.Error(t, err, "bucket is required")
}

func TestDriveRequiresToken(t *testing.T) {
	_, err := NewDrive().Upload(context.Background(), " ", []byte("{}"))
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "vault_snapshot.json", objectKey("", ""))
	assert.Equal(t, "backups/vault_snapshot.json", objectKey("backups", ""))
	assert.Equal(t, "backups/user-42/vault_snapshot.json", objectKey("backups", "user-42/../"))
}
