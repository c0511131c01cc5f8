package api

import (
	"sync"
	"time"
)

// RunStatus is the latest known state of a run on this instance.
type RunStatus struct {
	Tenant    string    `json:"tenantId"`
	RunID     string    `json:"runId"`
	State     string    `json:"state"` // running, completed, failed
	Last      SSEEvent  `json:"last"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunCache keeps the last event of recent runs so that stream clients that
// connect mid-run (or after it ended) get a snapshot instead of silence.
type RunCache struct {
	mu  sync.Mutex
	ttl time.Duration
	// key: tenant|runId
	m map[string]RunStatus
}

// NewRunCache constructs a RunCache. Finished runs are evicted after ttl.
func NewRunCache(ttl time.Duration) *RunCache {
	return &RunCache{ttl: ttl, m: map[string]RunStatus{}}
}

func (c *RunCache) key(tenant, runID string) string {
	return tenant + "|" + runID
}

// Begin claims runID for tenant. It fails when the id is already running.
func (c *RunCache) Begin(tenant, runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(time.Now())
	k := c.key(tenant, runID)
	if cur, ok := c.m[k]; ok && cur.State == "running" {
		return false
	}
	c.m[k] = RunStatus{Tenant: tenant, RunID: runID, State: "running", Last: SSEEvent{Type: EventRunStarted, Data: map[string]any{"runId": runID}}, UpdatedAt: time.Now()}
	return true
}

// Record stores evt as the latest event of the run.
func (c *RunCache) Record(tenant, runID string, evt SSEEvent) {
	if tenant == "" || runID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(tenant, runID)
	st := c.m[k]
	st.Tenant, st.RunID, st.Last, st.UpdatedAt = tenant, runID, evt, time.Now()
	switch evt.Type {
	case EventRunCompleted:
		st.State = "completed"
	case EventRunFailed:
		st.State = "failed"
	default:
		st.State = "running"
	}
	c.m[k] = st
}

// Get returns the cached status of a run.
func (c *RunCache) Get(tenant, runID string) (RunStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[c.key(tenant, runID)]
	return st, ok
}

func (c *RunCache) evictLocked(now time.Time) {
	for k, st := range c.m {
		if st.State != "running" && now.Sub(st.UpdatedAt) > c.ttl {
			delete(c.m, k)
		}
	}
}
