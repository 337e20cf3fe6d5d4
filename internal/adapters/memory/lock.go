package memory

import (
	"context"
	"sync"
	"time"

	"github.com/modvault/monetization-agent/internal/ports"
)

// RunLock is the single-process run lock used without Redis.
type RunLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewRunLock() *RunLock {
	return &RunLock{held: map[string]time.Time{}, nowFn: func() time.Time { return time.Now().UTC() }}
}

func (l *RunLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if expiry, ok := l.held[name]; ok && expiry.After(now) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

func (l *RunLock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

var _ ports.RunLock = (*RunLock)(nil)
