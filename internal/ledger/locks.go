package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/reflink/payoutledger/internal/domain"
)

// accountLocks hands out one mutual-exclusion slot per affiliate id.
// Acquisition waits at most the configured bound, so a stuck holder turns
// into a retryable domain.ErrLockTimeout instead of a blocked caller.
type accountLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{slots: make(map[string]chan struct{})}
}

func (l *accountLocks) slot(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

// acquire takes the lock for id, waiting up to wait. The returned release
// func must be called exactly once. Cancellation is honored only while
// waiting; once acquired, the critical section runs to completion.
func (l *accountLocks) acquire(ctx context.Context, id string, wait time.Duration) (func(), error) {
	ch := l.slot(id)

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, domain.ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
