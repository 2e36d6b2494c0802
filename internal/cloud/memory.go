package cloud

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory keeps uploads in process, keyed by token. It backs development
// setups and tests.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	now   func() time.Time

	// Delay postpones every call, for exercising timeouts.
	Delay time.Duration
}

func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}, now: time.Now}
}

func (m *Memory) Name() string { return BackendMemory }

func (m *Memory) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Upload(ctx context.Context, token string, data []byte) (time.Time, error) {
	if err := m.wait(ctx); err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[token] = slices.Clone(data)
	return m.now().UTC(), nil
}

func (m *Memory) Download(ctx context.Context, token string) ([]byte, bool, error) {
	if err := m.wait(ctx); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[token]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}
