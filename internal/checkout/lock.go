package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	lockScope      = "checkout_attempt"
	defaultLockTTL = 2 * time.Minute
)

// attemptLocker serialises payment steps on one attempt.
type attemptLocker struct {
	store redis.LockStore
	ttl   time.Duration
}

func newAttemptLocker(store redis.LockStore, ttl time.Duration) *attemptLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &attemptLocker{store: store, ttl: ttl}
}

// acquire returns a release func when the lock was taken and ok=false when
// another request holds it.
func (l *attemptLocker) acquire(ctx context.Context, attemptID uuid.UUID) (release func(context.Context) error, ok bool, err error) {
	key := l.store.LockKey(lockScope, attemptID.String())
	owner := uuid.NewString()
	ok, err = l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.store.ReleaseLock(ctx, key, owner); err != nil {
			return fmt.Errorf("release lock: %w", err)
		}
		return nil
	}, true, nil
}
