package api

import (
	"testing"
	"time"
)

func TestRunCacheLifecycle(t *testing.T) {
	c := NewRunCache(time.Minute)
	if !c.Begin("t1", "r1") {
		t.Fatal("first Begin should succeed")
	}
	if c.Begin("t1", "r1") {
		t.Fatal("run id reused while running")
	}
	if !c.Begin("t2", "r1") {
		t.Fatal("run ids are per tenant")
	}
	c.Record("t1", "r1", SSEEvent{Type: EventRunProgress, Data: map[string]any{"iteration": 3}})
	st, ok := c.Get("t1", "r1")
	if !ok || st.State != "running" || st.Last.Data["iteration"] != 3 {
		t.Fatalf("status = %+v", st)
	}
	c.Record("t1", "r1", SSEEvent{Type: EventRunCompleted})
	st, _ = c.Get("t1", "r1")
	if st.State != "completed" {
		t.Fatalf("state = %s", st.State)
	}
	if !c.Begin("t1", "r1") {
		t.Fatal("finished run id should be reusable")
	}
}

func TestRunCacheEvictsFinished(t *testing.T) {
	c := NewRunCache(0)
	c.Begin("t1", "done")
	c.Record("t1", "done", SSEEvent{Type: EventRunFailed})
	c.Begin("t1", "live")
	time.Sleep(time.Millisecond)
	c.Begin("t1", "other")
	if _, ok := c.Get("t1", "done"); ok {
		t.Fatal("finished run should be evicted")
	}
	if _, ok := c.Get("t1", "live"); !ok {
		t.Fatal("running run must not be evicted")
	}
}
