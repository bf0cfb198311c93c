// Package jobguard gates long-running supervisor operations behind
// declarative pre-conditions on system state, and per-job execution limits
// (serialize, wait, throttle, rate limit, run-once). It is the policy layer a
// host-supervisor daemon wraps around image pulls, backups, restarts, network
// probes, and similar asynchronous work.
//
// A [Job] binds a body to a [Registry], a set of [Condition] values, and an
// [ExecutionLimit]. On each invocation the current system [Snapshot] is
// re-read and tested against the conditions, then the limiter admits,
// rejects, or quietly skips the call. Rejections either surface as errors
// (see [Config.OnCondition]) or resolve to the body's zero value, which
// callers must treat as "work did not run".
package jobguard
