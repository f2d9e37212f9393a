package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errSlotWaitTimeout = errors.New("slot wait timed out")

// slotPool is the fixed pool of concurrent-inference permits. Capacity
// matches accelerator capacity; exceeding it is backpressure, not queueing.
type slotPool struct {
	ch chan struct{}
}

func newSlotPool(n int) *slotPool {
	return &slotPool{ch: make(chan struct{}, n)}
}

// acquire reserves a slot, waiting at most wait. The returned release func
// must be deferred. On caller cancellation acquire returns ctx.Err(); on
// timeout it returns errSlotWaitTimeout.
func (p *slotPool) acquire(ctx context.Context, wait time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if wait <= 0 {
		select {
		case p.ch <- struct{}{}:
		default:
			return nil, errSlotWaitTimeout
		}
		slotsInUse.Inc()
		return p.releaseFn(), nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case p.ch <- struct{}{}:
		slotsInUse.Inc()
		return p.releaseFn(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errSlotWaitTimeout
	}
}

func (p *slotPool) releaseFn() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-p.ch
			slotsInUse.Dec()
		})
	}
}

func (p *slotPool) inUse() int { return len(p.ch) }

// sessionLocks enforces one in-flight request per session.
type sessionLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{active: make(map[string]struct{})}
}

// tryAcquire claims the session without blocking. The release func must be
// deferred by the winner.
func (l *sessionLocks) tryAcquire(id string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[id]; busy {
		return nil, false
	}
	l.active[id] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.active, id)
		l.mu.Unlock()
	}, true
}
