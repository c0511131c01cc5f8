package api

import (
	"sync"
)

// SSEEvent is one message on a run's progress stream.
type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Progress event types.
const (
	EventRunStarted   = "optimization.started"
	EventRunProgress  = "optimization.progress"
	EventRunCompleted = "optimization.completed"
	EventRunFailed    = "optimization.failed"
)

// terminal reports whether no more events follow evt on its stream.
func (e SSEEvent) terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}

type EventBroker interface {
	Subscribe(runID string) chan SSEEvent
	Unsubscribe(runID string, ch chan SSEEvent)
	Publish(runID string, evt SSEEvent)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan SSEEvent {
	ch := make(chan SSEEvent, 32)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan SSEEvent]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

// Publish never blocks: slow subscribers drop progress events.
func (b *Broker) Publish(runID string, evt SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		deliver(ch, evt)
	}
}

// deliver hands evt to ch without blocking. When ch is full, progress events
// are dropped and terminal events evict the oldest buffered event so the
// stream can end. Only the sending side of ch may call it.
func deliver(ch chan SSEEvent, evt SSEEvent) {
	select {
	case ch <- evt:
		return
	default:
	}
	if !evt.terminal() {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}
