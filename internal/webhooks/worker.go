package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/karthik-kata/StingerOps/internal/metrics"
	"github.com/karthik-kata/StingerOps/internal/store"
)

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	Interval    time.Duration
	Timeout     time.Duration // per delivery attempt, 10s when zero
	stopOnce    sync.Once
}

func NewWorker(s store.Store, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Interval: time.Second}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Close stops the polling loop. It is safe to call more than once.
func (w *Worker) Close() {
	w.stopOnce.Do(func() { close(w.Stop) })
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	cancel()
	if err != nil {
		log.Printf("webhooks: fetch due: %v", err)
		return
	}
	for _, it := range items {
		w.deliver(it)
	}
}

// deliver makes one attempt with its own deadline and records the outcome.
func (w *Worker) deliver(it store.WebhookDelivery) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	success := false
	next := time.Now().Add(nextBackoff(it.Attempts))
	code, latency := 0, 0
	lastErr := ""
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		req.Header.Set("X-Delivery-Id", it.ID)
		req.Header.Set("X-Delivery-Attempt", strconv.Itoa(it.Attempts+1))
		if it.Secret != "" {
			req.Header.Set(SignatureHeader, Sign(it.Secret, it.Payload, time.Now()))
		}
		start := time.Now()
		resp, derr := w.HTTP.Do(req)
		latency = int(time.Since(start).Milliseconds())
		err = derr
		if resp != nil {
			code = resp.StatusCode
			_ = resp.Body.Close()
			success = code >= 200 && code < 300
		}
	}
	switch {
	case err != nil:
		lastErr = err.Error()
	case !success:
		lastErr = fmt.Sprintf("status %d", code)
	}

	status := store.DeliveryDelivered
	if !success {
		status = store.DeliveryRetry
		if it.Attempts+1 >= w.MaxAttempts {
			status = store.DeliveryFailed
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))

	// the attempt's deadline may be spent; recording gets a fresh one
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if status == store.DeliveryFailed {
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
			log.Printf("webhooks: fail %s: %v", it.ID, err)
		}
		return
	}
	if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
		log.Printf("webhooks: mark %s: %v", it.ID, err)
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
