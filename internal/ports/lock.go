package ports

import (
	"context"
	"time"
)

// RunLock serializes orchestrator runs of the same job type across the
// scheduled and manual triggers. Acquire returns false when another
// holder is active; the TTL bounds how long a crashed run can pin the
// lock.
type RunLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}
