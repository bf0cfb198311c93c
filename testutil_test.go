package jobguard

import (
	"sync"
	"time"
)

// fakeState is a mutable StateSource for tests.
type fakeState struct {
	mu   sync.Mutex
	snap Snapshot
}

func (x *fakeState) SystemState() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.snap
}

func (x *fakeState) set(f func(*Snapshot)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	f(&x.snap)
}

// healthyState returns a source describing a fully booted, healthy system.
func healthyState() *fakeState {
	return &fakeState{snap: Snapshot{
		State:                  StateRunning,
		HostConnectivity:       ConnectivityUp,
		SupervisorConnectivity: ConnectivityUp,
		FreeSpaceGiB:           42,
		HAOSAvailable:          true,
		OSAgentAvailable:       true,
		AuthPresent:            true,
		PluginsUpToDate:        true,
		SupervisorUpToDate:     true,
	}}
}

func newTestRegistry(source StateSource) *Registry {
	if source == nil {
		source = healthyState()
	}
	return NewRegistry(source, nil)
}

// stubTime replaces timeNow with a manually advanced clock, returning the
// advance func and a restore func for defer.
func stubTime(start time.Time) (advance func(d time.Duration), restore func()) {
	old := timeNow
	var mu sync.Mutex
	now := start
	timeNow = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}, func() {
			timeNow = old
		}
}
