package jobguard

import (
	"context"
	"errors"
	"time"

	"golang.org/x/exp/slices"
)

type (
	// Config models the declarative gate applied to a job, for NewJob.
	Config struct {
		// Conditions gate admission against the current system snapshot.
		// All must pass (or be ignored) before the limiter is consulted.
		Conditions []Condition

		// Limit selects the execution-limit mode. Defaults to LimitNone.
		Limit ExecutionLimit

		// ThrottlePeriod is the minimum interval between admissions, and the
		// window duration for LimitThrottleRateLimit.
		// **Required (positive) for the throttle modes.**
		ThrottlePeriod time.Duration

		// RateLimitMax is the number of admissions allowed per window.
		// **Required (positive) for LimitThrottleRateLimit.**
		RateLimitMax int

		// OnCondition, if non-nil, converts gate rejections into errors:
		// pre-condition failures surface as [ConditionError], limiter
		// rejections as [LimitError], both matching OnCondition via
		// errors.Is. If nil, rejections resolve to the neutral result, with
		// a warning log.
		OnCondition error
	}

	// Job wraps a body in a reusable guard enforcing conditions and an
	// execution limit. Instances must be initialized using the NewJob
	// factory. Concurrent Run calls are safe; all invocations of jobs
	// bound to the same name share one state record.
	Job[R any] struct {
		registry       *Registry
		name           string
		body           func(context.Context) (R, error)
		conditions     []Condition
		limit          ExecutionLimit
		throttlePeriod time.Duration
		rateLimitMax   int
		onCondition    error
	}
)

// NewJob binds body to registry under the given stable operation identity,
// applying the gates described by config. The provided config may be nil.
// A panic will occur if registry or body is nil, name is empty, or the
// config is invalid (unknown conditions, throttle modes without a period,
// rate limiting without a max).
func NewJob[R any](registry *Registry, name string, body func(context.Context) (R, error), config *Config) *Job[R] {
	if registry == nil {
		panic(`jobguard: nil registry`)
	}
	if name == `` {
		panic(`jobguard: empty job name`)
	}
	if body == nil {
		panic(`jobguard: nil job body`)
	}

	var c Config
	if config != nil {
		c = *config
	}
	if !c.Limit.Valid() {
		panic(`jobguard: invalid execution limit`)
	}
	for _, cond := range c.Conditions {
		if !cond.Valid() {
			panic(`jobguard: invalid condition: ` + string(cond))
		}
	}
	if c.Limit.throttled() && c.ThrottlePeriod <= 0 {
		panic(`jobguard: limit ` + c.Limit.String() + ` requires a throttle period`)
	}
	if c.Limit == LimitThrottleRateLimit && c.RateLimitMax <= 0 {
		panic(`jobguard: limit throttle_rate_limit requires a rate limit max`)
	}

	return &Job[R]{
		registry:       registry,
		name:           name,
		body:           body,
		conditions:     slices.Clone(c.Conditions),
		limit:          c.Limit,
		throttlePeriod: c.ThrottlePeriod,
		rateLimitMax:   c.RateLimitMax,
		onCondition:    c.OnCondition,
	}
}

// Name returns the operation identity.
func (x *Job[R]) Name() string { return x.name }

// Run invokes the wrapped body, applying the gates. When admitted and
// successful it is transparent: body's result and error are returned
// unchanged, except that unexpected body errors (not matching
// [ErrSupervisor] or context cancellation) are wrapped in [JobError].
//
// On rejection the zero value of R is returned, the neutral result, unless
// [Config.OnCondition] is set. Cancellation while waiting on the job lock
// propagates the context's error without running the body.
func (x *Job[R]) Run(ctx context.Context) (R, error) {
	var zero R

	rec := x.registry.record(x.name)

	snapshot := x.registry.source.SystemState()
	if cond, ok := x.registry.failingCondition(&snapshot, x.conditions, x.name); !ok {
		rec.noteConditionReject()
		if x.onCondition != nil {
			return zero, &ConditionError{Job: x.name, Condition: cond, Kind: x.onCondition}
		}
		x.registry.warnConditionReject(x.name, cond)
		return zero, nil
	}

	adm, err := rec.admit(ctx, x.limit, x.throttlePeriod, x.rateLimitMax)
	if err != nil {
		if errors.Is(err, ErrBusy) || errors.Is(err, ErrRateLimit) {
			if x.onCondition != nil {
				return zero, &LimitError{Job: x.name, Limit: x.limit, Reason: err, Kind: x.onCondition}
			}
			x.registry.warnLimited(x.name, x.limit, err)
			return zero, nil
		}
		// cancelled while waiting on the job lock
		return zero, err
	}
	if adm == nil {
		// throttled, quietly skip
		return zero, nil
	}
	defer adm.release()

	out, err := x.body(ctx)
	if err != nil && !passthrough(err) {
		return out, &JobError{Job: x.name, Cause: err}
	}
	return out, err
}

// passthrough reports whether a body error crosses the guard unwrapped:
// domain errors, and cancellation.
func passthrough(err error) bool {
	return errors.Is(err, ErrSupervisor) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
