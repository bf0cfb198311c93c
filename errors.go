package jobguard

import (
	"fmt"
)

type (
	// taxonomyError is a sentinel with a parent, so that errors.Is matches
	// both the sentinel itself and every ancestor in the hierarchy.
	taxonomyError struct {
		parent error
		msg    string
	}

	// JobError wraps an unexpected failure raised by a job body. Errors
	// matching [ErrSupervisor] (and context cancellation) pass through the
	// guard unchanged and are never wrapped.
	JobError struct {
		// Job is the operation identity.
		Job string
		// Cause is the original error.
		Cause error
	}

	// ConditionError reports a pre-condition rejection. It is only returned
	// when [Config.OnCondition] is set; otherwise rejection resolves to the
	// neutral result.
	ConditionError struct {
		// Job is the operation identity.
		Job string
		// Condition is the first failing condition.
		Condition Condition
		// Kind is the configured on-condition error kind, matched by
		// errors.Is in addition to [ErrConditionFailed].
		Kind error
	}

	// LimitError reports a limiter rejection (busy, or rate window
	// exhausted). It is only returned when [Config.OnCondition] is set;
	// otherwise rejection resolves to the neutral result.
	LimitError struct {
		// Job is the operation identity.
		Job string
		// Limit is the job's execution limit mode.
		Limit ExecutionLimit
		// Reason is [ErrBusy] or [ErrRateLimit].
		Reason error
		// Kind is the configured on-condition error kind, matched by
		// errors.Is in addition to Reason.
		Kind error
	}
)

// The error taxonomy forms a hierarchy: every error this package constructs
// matches [ErrSupervisor] (context errors are returned as they are, and do
// not match it), limiter and condition rejections additionally
// match [ErrJob], and the leaf sentinels identify the specific gate.
var (
	// ErrSupervisor is the root of the domain error hierarchy. Body errors
	// matching it are treated as domain errors and pass through unwrapped.
	ErrSupervisor error = &taxonomyError{msg: `jobguard: supervisor error`}

	// ErrJob marks failures attributed to the job machinery itself,
	// including wrapped unexpected body failures.
	ErrJob error = &taxonomyError{msg: `jobguard: job error`, parent: ErrSupervisor}

	// ErrConditionFailed marks a pre-condition rejection.
	ErrConditionFailed error = &taxonomyError{msg: `jobguard: job condition failed`, parent: ErrJob}

	// ErrBusy marks a rejection due to in-flight work (single/once modes).
	ErrBusy error = &taxonomyError{msg: `jobguard: job busy`, parent: ErrJob}

	// ErrRateLimit marks a rejection due to an exhausted rate window.
	ErrRateLimit error = &taxonomyError{msg: `jobguard: job rate limit exceeded`, parent: ErrJob}
)

func (x *taxonomyError) Error() string { return x.msg }

func (x *taxonomyError) Unwrap() error { return x.parent }

func (x *JobError) Error() string {
	return fmt.Sprintf(`jobguard: job %q failed: %v`, x.Job, x.Cause)
}

func (x *JobError) Unwrap() []error {
	if x.Cause != nil {
		return []error{ErrJob, x.Cause}
	}
	return []error{ErrJob}
}

func (x *ConditionError) Error() string {
	return fmt.Sprintf(`jobguard: job %q rejected: condition %s not met`, x.Job, x.Condition)
}

func (x *ConditionError) Unwrap() []error {
	if x.Kind != nil {
		return []error{ErrConditionFailed, x.Kind}
	}
	return []error{ErrConditionFailed}
}

func (x *LimitError) Error() string {
	return fmt.Sprintf(`jobguard: job %q rejected: %v (limit %s)`, x.Job, x.Reason, x.Limit)
}

func (x *LimitError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if x.Reason != nil {
		errs = append(errs, x.Reason)
	}
	if x.Kind != nil {
		errs = append(errs, x.Kind)
	}
	return errs
}
