package jobguard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// for testing purposes
var timeNow = time.Now

type (
	// jobRecord is the per-job mutable state the limiter operates on. One
	// exists per operation identity, created lazily on first invocation and
	// retained for the process lifetime.
	//
	// Each invocation moves through admitted (counted, possibly waiting on
	// lock), running (body in flight), and draining (scope-guarded release
	// of counter and lock). All fields except lock are guarded by mu; the
	// critical sections never block.
	jobRecord struct {
		name string

		// lock serializes body execution for the wait modes. Capacity 1,
		// send acquires, receive releases; blocked senders are queued FIFO
		// by the runtime.
		lock chan struct{}

		mu          sync.Mutex
		activeCount int
		lastRunAt   time.Time
		windowStart time.Time
		windowCount int
		runs        map[uuid.UUID]time.Time
		stats       JobStats
	}

	// admission is the scope guard for a single admitted invocation.
	admission struct {
		rec    *jobRecord
		id     uuid.UUID
		locked bool
	}

	// JobStats counts gate outcomes for a job, since process start.
	JobStats struct {
		// Admitted counts invocations whose body ran.
		Admitted uint64
		// Throttled counts quiet skips by the throttle modes.
		Throttled uint64
		// RejectedBusy counts busy rejections (single/once modes).
		RejectedBusy uint64
		// RejectedRateLimit counts exhausted-window rejections.
		RejectedRateLimit uint64
		// RejectedCondition counts pre-condition rejections.
		RejectedCondition uint64
	}
)

func newJobRecord(name string) *jobRecord {
	return &jobRecord{
		name: name,
		lock: make(chan struct{}, 1),
		runs: make(map[uuid.UUID]time.Time),
	}
}

// admit applies the mode-specific gate. A non-nil admission means the body
// may run, and release must be called on every exit path. A nil admission
// with a nil error is a quiet throttle skip. Errors are ErrBusy,
// ErrRateLimit, or the context's error if cancelled while waiting.
func (x *jobRecord) admit(ctx context.Context, limit ExecutionLimit, period time.Duration, limitMax int) (*admission, error) {
	switch limit {
	case LimitSingle, LimitOnce:
		x.mu.Lock()
		defer x.mu.Unlock()
		if x.activeCount > 0 {
			x.stats.RejectedBusy++
			return nil, ErrBusy
		}
		return x.admitLocked(false, false), nil

	case LimitSingleWait, LimitThrottleWait:
		x.mu.Lock()
		x.activeCount++
		x.mu.Unlock()
		if err := x.acquire(ctx); err != nil {
			x.mu.Lock()
			x.activeCount--
			x.mu.Unlock()
			return nil, err
		}
		x.mu.Lock()
		defer x.mu.Unlock()
		if limit == LimitThrottleWait && !x.throttleElapsed(period) {
			x.activeCount--
			x.stats.Throttled++
			x.unlock()
			return nil, nil
		}
		return x.admitLocked(true, true), nil

	case LimitThrottle:
		x.mu.Lock()
		defer x.mu.Unlock()
		if !x.throttleElapsed(period) {
			x.stats.Throttled++
			return nil, nil
		}
		return x.admitLocked(false, false), nil

	case LimitThrottleRateLimit:
		x.mu.Lock()
		defer x.mu.Unlock()
		now := timeNow()
		if x.windowStart.IsZero() || now.Sub(x.windowStart) >= period {
			x.windowStart = now
			x.windowCount = 0
		}
		if x.windowCount >= limitMax {
			x.stats.RejectedRateLimit++
			return nil, ErrRateLimit
		}
		x.windowCount++
		return x.admitLocked(false, false), nil

	default: // LimitNone
		x.mu.Lock()
		defer x.mu.Unlock()
		return x.admitLocked(false, false), nil
	}
}

// admitLocked records a successful admission. The caller must hold mu.
// counted indicates activeCount was already incremented (pre-wait), locked
// indicates the invocation holds the job lock.
func (x *jobRecord) admitLocked(locked, counted bool) *admission {
	if !counted {
		x.activeCount++
	}
	now := timeNow()
	x.lastRunAt = now
	x.stats.Admitted++
	id := uuid.New()
	x.runs[id] = now
	return &admission{rec: x, id: id, locked: locked}
}

// throttleElapsed reports whether the throttle period has passed since the
// last admission. The caller must hold mu.
func (x *jobRecord) throttleElapsed(period time.Duration) bool {
	return x.lastRunAt.IsZero() || timeNow().Sub(x.lastRunAt) >= period
}

// acquire takes the job lock, blocking until available or ctx is done.
// Waiters acquire in FIFO order of arrival.
func (x *jobRecord) acquire(ctx context.Context) error {
	select {
	case x.lock <- struct{}{}:
		return nil
	default:
	}
	select {
	case x.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *jobRecord) unlock() {
	<-x.lock
}

// noteConditionReject counts a pre-condition rejection, for diagnostics.
func (x *jobRecord) noteConditionReject() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stats.RejectedCondition++
}

// release drains the invocation: counter decrement, run removal, and lock
// release. It runs via defer on every exit path, including panics and
// cancellation mid-body.
func (x *admission) release() {
	x.rec.mu.Lock()
	x.rec.activeCount--
	delete(x.rec.runs, x.id)
	x.rec.mu.Unlock()
	if x.locked {
		x.rec.unlock()
	}
}
