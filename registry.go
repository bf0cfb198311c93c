package jobguard

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// Registry is the process-wide store of job records, created at
	// supervisor boot and torn down at shutdown. It owns the operator
	// ignore set, and provides snapshot enumeration for diagnostics.
	// Nothing is persisted: after restart, all records start fresh.
	Registry struct {
		source      StateSource
		logger      *logiface.Logger[logiface.Event]
		warnLimiter *catrate.Limiter

		mu      sync.RWMutex
		records map[string]*jobRecord
		ignore  map[Condition]struct{}
	}

	// RegistryConfig models optional configuration, for NewRegistry.
	RegistryConfig struct {
		// Logger receives gate warnings (ignored conditions, neutral
		// rejections). A nil logger disables logging.
		Logger *logiface.Logger[logiface.Event]

		// WarnRates rate-limits repeated gate warnings, per (job, gate)
		// category, so a caller in a tight retry loop cannot flood the log.
		// **Defaults to 6 per minute, if nil.** An empty (non-nil) map
		// disables rate limiting.
		WarnRates map[time.Duration]int
	}

	// RunInfo describes one in-flight invocation of a job.
	RunInfo struct {
		// ID identifies the invocation. It is not included in log events.
		ID uuid.UUID
		// StartedAt is when the invocation was admitted.
		StartedAt time.Time
	}

	// JobInfo is a diagnostic snapshot of one job record.
	JobInfo struct {
		// Name is the operation identity.
		Name string
		// ActiveCount is the number of in-flight invocations, awaiting or
		// holding the job lock.
		ActiveCount int
		// LastRunAt is the most recent successful admission, zero if never.
		LastRunAt time.Time
		// Runs lists the in-flight invocations, oldest first.
		Runs []RunInfo
		// Stats counts gate outcomes since process start.
		Stats JobStats
	}

	// warnCategory keys warning rate limiting, per job and gate.
	warnCategory struct {
		job  string
		gate string
	}
)

// NewRegistry initializes a Registry reading system state from source. The
// provided config may be nil. A panic will occur if source is nil, or
// invalid warn rates are provided.
func NewRegistry(source StateSource, config *RegistryConfig) *Registry {
	if source == nil {
		panic(`jobguard: nil state source`)
	}

	registry := Registry{
		source:  source,
		records: make(map[string]*jobRecord),
		ignore:  make(map[Condition]struct{}),
	}

	warnRates := map[time.Duration]int{time.Minute: 6}
	if config != nil {
		registry.logger = config.Logger
		if config.WarnRates != nil {
			warnRates = config.WarnRates
		}
	}
	if len(warnRates) != 0 {
		// note: nil disables limiting (a nil limiter allows everything)
		registry.warnLimiter = catrate.NewLimiter(warnRates)
	}

	return &registry
}

// record returns the job record for name, creating it on first use.
func (x *Registry) record(name string) *jobRecord {
	x.mu.RLock()
	rec := x.records[name]
	x.mu.RUnlock()
	if rec != nil {
		return rec
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if rec = x.records[name]; rec == nil {
		rec = newJobRecord(name)
		x.records[name] = rec
	}
	return rec
}

// SetIgnore replaces the set of conditions that are forced to pass. It is
// an operator escape hatch, process-wide by design: disabling a condition
// suppresses it for every job. A panic will occur on invalid conditions.
func (x *Registry) SetIgnore(conditions ...Condition) {
	ignore := make(map[Condition]struct{}, len(conditions))
	for _, c := range conditions {
		if !c.Valid() {
			panic(`jobguard: invalid condition: ` + string(c))
		}
		ignore[c] = struct{}{}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.ignore = ignore
}

// ClearIgnore empties the ignore set.
func (x *Registry) ClearIgnore() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ignore = make(map[Condition]struct{})
}

// Ignored returns the currently ignored conditions, sorted.
func (x *Registry) Ignored() []Condition {
	x.mu.RLock()
	conditions := maps.Keys(x.ignore)
	x.mu.RUnlock()
	slices.Sort(conditions)
	return conditions
}

// Snapshot enumerates all known jobs, sorted by name.
func (x *Registry) Snapshot() []JobInfo {
	x.mu.RLock()
	records := maps.Values(x.records)
	x.mu.RUnlock()

	infos := make([]JobInfo, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		info := JobInfo{
			Name:        rec.name,
			ActiveCount: rec.activeCount,
			LastRunAt:   rec.lastRunAt,
			Stats:       rec.stats,
		}
		if len(rec.runs) != 0 {
			info.Runs = make([]RunInfo, 0, len(rec.runs))
			for id, startedAt := range rec.runs {
				info.Runs = append(info.Runs, RunInfo{ID: id, StartedAt: startedAt})
			}
		}
		rec.mu.Unlock()
		slices.SortFunc(info.Runs, func(a, b RunInfo) int {
			if v := a.StartedAt.Compare(b.StartedAt); v != 0 {
				return v
			}
			return slices.Compare(a.ID[:], b.ID[:])
		})
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b JobInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return infos
}

// failingCondition evaluates conditions in order against the snapshot,
// honoring the ignore set, and returns the first failure. Ignored
// conditions are forced to pass, with a warning.
func (x *Registry) failingCondition(s *Snapshot, conditions []Condition, job string) (Condition, bool) {
	for _, c := range conditions {
		if x.isIgnored(c) {
			x.warnIgnored(job, c)
			continue
		}
		if !c.met(s) {
			return c, false
		}
	}
	return ``, true
}

func (x *Registry) isIgnored(c Condition) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.ignore[c]
	return ok
}

func (x *Registry) warnIgnored(job string, c Condition) {
	if _, ok := x.warnLimiter.Allow(warnCategory{job, `ignore:` + string(c)}); !ok {
		return
	}
	x.logger.Warning().
		Str(`job`, job).
		Str(`condition`, string(c)).
		Log(`ignoring job condition`)
}

func (x *Registry) warnConditionReject(job string, c Condition) {
	if _, ok := x.warnLimiter.Allow(warnCategory{job, `condition`}); !ok {
		return
	}
	x.logger.Warning().
		Str(`job`, job).
		Str(`condition`, string(c)).
		Log(`job blocked by condition`)
}

func (x *Registry) warnLimited(job string, limit ExecutionLimit, reason error) {
	if _, ok := x.warnLimiter.Allow(warnCategory{job, `limit`}); !ok {
		return
	}
	x.logger.Warning().
		Str(`job`, job).
		Str(`limit`, limit.String()).
		Err(reason).
		Log(`job not admitted`)
}
