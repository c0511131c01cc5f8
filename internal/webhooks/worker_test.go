package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/karthik-kata/StingerOps/internal/model"
	"github.com/karthik-kata/StingerOps/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventOptimizationCompleted, srv.URL, "secret", []byte(`{"id":"evt1"}`))
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != model.EventOptimizationCompleted {
		t.Fatalf("event type header = %q", gotType)
	}
	if err := Verify("secret", gotBody, gotSig, time.Now(), time.Minute); err != nil {
		t.Fatalf("signature %q does not verify body %s: %v", gotSig, gotBody, err)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}
	id, _ := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventOptimizationFailed, srv.URL, "", []byte(`{}`))

	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].LastErr != "status 500" {
		t.Fatalf("first attempt should be a retry: %+v", rs.marks)
	}
	if len(rs.fails) != 0 {
		t.Fatal("should not fail before MaxAttempts")
	}

	// make it due again and exhaust the attempts
	if err := rs.RetryWebhookDelivery(context.Background(), "t1", id); err != nil {
		t.Fatal(err)
	}
	w.processOnce()
	if len(rs.fails) != 1 || rs.fails[0].Code != 500 {
		t.Fatalf("expected fail recorded: %+v", rs.fails)
	}
}

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://a", Events: []string{model.EventOptimizationCompleted}, Secret: "s"})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://b", Events: []string{model.EventOptimizationFailed}})
	p := NewPublisher(m)

	if n := p.Emit(ctx, "t1", model.EventOptimizationCompleted, map[string]any{"runId": "r1"}); n != 1 {
		t.Fatalf("enqueued %d", n)
	}
	if n := p.Emit(ctx, "t2", model.EventOptimizationCompleted, nil); n != 0 {
		t.Fatalf("other tenant enqueued %d", n)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].URL != "http://a" || due[0].Secret != "s" {
		t.Fatalf("due = %+v", due)
	}
	var evt Event
	if err := json.Unmarshal(due[0].Payload, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != model.EventOptimizationCompleted || evt.TenantID != "t1" || evt.ID == "" {
		t.Fatalf("event = %+v", evt)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if nextBackoff(0) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatalf("unexpected backoff: %v %v", nextBackoff(0), nextBackoff(3))
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("cap = %v", nextBackoff(50))
	}
}

func TestWorkerSlowEndpointDoesNotStarveOthers(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(200)
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }))
	defer fast.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: &http.Client{}, Stop: make(chan struct{}), MaxAttempts: 3, Timeout: 100 * time.Millisecond}
	slowID, _ := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventOptimizationCompleted, slow.URL, "", []byte(`{}`))
	fastID, _ := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventOptimizationCompleted, fast.URL, "", []byte(`{}`))

	w.processOnce()
	if len(rs.marks) != 2 {
		t.Fatalf("marks = %+v", rs.marks)
	}
	for _, m := range rs.marks {
		switch m.ID {
		case slowID:
			if m.Success || m.LastErr == "" {
				t.Fatalf("slow delivery = %+v", m)
			}
		case fastID:
			if !m.Success || m.Code != 204 {
				t.Fatalf("fast delivery = %+v", m)
			}
		default:
			t.Fatalf("unexpected mark %+v", m)
		}
	}
}
