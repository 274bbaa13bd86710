package reservation

import (
	"context"
	"time"
)

// Locker serializes reserve passes on the same product across instances.
// The redis client satisfies it; a nil Locker skips locking entirely, which
// is safe for a single instance because the ledger enforces quantity
// invariants under its own row locks.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
