package jobguard

import (
	"fmt"
)

// ExecutionLimit controls concurrency and rate of admissions to a job's
// body. The zero value applies no limiter gate.
type ExecutionLimit int

const (
	// LimitNone applies no limiter gate. Conditions still apply, and active
	// invocations are still tracked for diagnostics.
	LimitNone ExecutionLimit = iota
	// LimitSingle rejects while another invocation is in flight.
	LimitSingle
	// LimitSingleWait queues invocations on the job lock, FIFO.
	LimitSingleWait
	// LimitThrottle quietly skips invocations within the throttle period.
	// Concurrent callers are admitted, only time matters.
	LimitThrottle
	// LimitThrottleWait serializes on the job lock, then quietly skips
	// waiters that land within the throttle period. At most one body runs
	// per period.
	LimitThrottleWait
	// LimitThrottleRateLimit admits at most RateLimitMax invocations per
	// fixed window of ThrottlePeriod, rejecting the rest.
	LimitThrottleRateLimit
	// LimitOnce behaves like LimitSingle, intended for long-running
	// idempotent jobs (backup, reboot) where overlap would be destructive
	// and the overlap itself is an error worth surfacing.
	LimitOnce
)

// Valid reports whether the limit is a member of the closed set.
func (x ExecutionLimit) Valid() bool {
	return x >= LimitNone && x <= LimitOnce
}

// throttled reports whether the limit requires a throttle period.
func (x ExecutionLimit) throttled() bool {
	switch x {
	case LimitThrottle, LimitThrottleWait, LimitThrottleRateLimit:
		return true
	default:
		return false
	}
}

func (x ExecutionLimit) String() string {
	switch x {
	case LimitNone:
		return `none`
	case LimitSingle:
		return `single`
	case LimitSingleWait:
		return `single_wait`
	case LimitThrottle:
		return `throttle`
	case LimitThrottleWait:
		return `throttle_wait`
	case LimitThrottleRateLimit:
		return `throttle_rate_limit`
	case LimitOnce:
		return `once`
	default:
		return fmt.Sprintf(`invalid execution limit (%d)`, int(x))
	}
}
