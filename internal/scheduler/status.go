package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is a thread-safe snapshot of everything the worker's HTTP control
// surface reports: which loops are enabled and currently mid-run, how many
// per-product jobs are active right now, and whether the leader lock is
// held. All fields are updated from loop goroutines and read from HTTP
// handlers running on other goroutines, hence the mutex/atomics.
type Status struct {
	startedAt time.Time

	mu      sync.Mutex
	enabled map[string]bool
	running map[string]bool

	activeJobs   int64
	leaderHeld   int32
	shuttingDown int32
}

func newStatus() *Status {
	return &Status{
		startedAt: time.Now().UTC(),
		enabled:   make(map[string]bool),
		running:   make(map[string]bool),
	}
}

func (st *Status) setEnabled(loop string, v bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.enabled[loop] = v
}

func (st *Status) setRunning(loop string, v bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.running[loop] = v
}

// Uptime returns how long this worker process has been running.
func (st *Status) Uptime() time.Duration {
	return time.Since(st.startedAt)
}

// SetLeaderHeld records whether this process holds the MAIN_SCHEDULER lock.
func (st *Status) SetLeaderHeld(held bool) {
	v := int32(0)
	if held {
		v = 1
	}
	atomic.StoreInt32(&st.leaderHeld, v)
}

// LeaderHeld reports whether this process currently holds the leader lock.
func (st *Status) LeaderHeld() bool {
	return atomic.LoadInt32(&st.leaderHeld) == 1
}

// SetShuttingDown flips the shutdown flag consumed by /healthz and /readyz.
func (st *Status) SetShuttingDown(v bool) {
	n := int32(0)
	if v {
		n = 1
	}
	atomic.StoreInt32(&st.shuttingDown, n)
}

// ShuttingDown reports whether the worker has begun draining.
func (st *Status) ShuttingDown() bool {
	return atomic.LoadInt32(&st.shuttingDown) == 1
}

func (st *Status) incActiveJobs()  { atomic.AddInt64(&st.activeJobs, 1) }
func (st *Status) decActiveJobs()  { atomic.AddInt64(&st.activeJobs, -1) }

// ActiveJobs returns the number of per-product check jobs in flight.
func (st *Status) ActiveJobs() int64 {
	return atomic.LoadInt64(&st.activeJobs)
}

// Snapshot is the plain-data view of Status served over HTTP.
type Snapshot struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	LeaderHeld    bool            `json:"leader_held"`
	ShuttingDown  bool            `json:"shutting_down"`
	ActiveJobs    int64           `json:"active_jobs"`
	Enabled       map[string]bool `json:"schedulers_enabled"`
	Running       map[string]bool `json:"schedulers_running"`
	AnyStarted    bool            `json:"any_scheduler_started"`
}

// Snapshot captures the current state for JSON serving.
func (st *Status) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	enabled := make(map[string]bool, len(st.enabled))
	for k, v := range st.enabled {
		enabled[k] = v
	}
	running := make(map[string]bool, len(st.running))
	anyStarted := false
	for k, v := range st.running {
		running[k] = v
		anyStarted = true
	}

	return Snapshot{
		UptimeSeconds: st.Uptime().Seconds(),
		LeaderHeld:    st.LeaderHeld(),
		ShuttingDown:  st.ShuttingDown(),
		ActiveJobs:    st.ActiveJobs(),
		Enabled:       enabled,
		Running:       running,
		AnyStarted:    anyStarted || len(enabled) > 0,
	}
}
