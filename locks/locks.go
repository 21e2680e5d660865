// Package locks serialises work per key. Redis coordinates across instances;
// Local is the single-process fallback used when no Redis is configured.
package locks

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when a lock could not be taken before the context ended
var ErrNotAcquired = errors.New("locks: lock not acquired")

// JobLocker is the non-blocking lock the scheduler uses so a job runs on one
// instance at a time
type JobLocker interface {
	TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}
