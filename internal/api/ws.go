package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Progress over WebSocket. Clients send connection_init, then subscribe
// messages carrying {"runId": ...}; each run event arrives as a next message
// and the subscription completes after the run's terminal event.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribe struct {
	RunID string `json:"runId"`
}

// ProgressWSHandler handles /v1/optimizations/ws.
func (s *Server) ProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		topic string
		ch    chan SSEEvent
	}
	var mu sync.Mutex
	subs := map[string]sub{}
	done := make(chan struct{})
	defer close(done)

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	fail := func(id, msg string) {
		payload, _ := json.Marshal(map[string]string{"message": msg})
		_ = write(wsMessage{Type: "error", ID: id, Payload: payload})
		_ = write(wsMessage{Type: "complete", ID: id})
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "pong":
		case "subscribe":
			var pl wsSubscribe
			if err := json.Unmarshal(msg.Payload, &pl); err != nil || pl.RunID == "" {
				fail(msg.ID, "runId required")
				continue
			}
			mu.Lock()
			_, dup := subs[msg.ID]
			mu.Unlock()
			if msg.ID == "" || dup {
				fail(msg.ID, "subscription id missing or in use")
				continue
			}
			topic := runTopic(pr.Tenant, pl.RunID)
			ch := s.Broker.Subscribe(topic)
			mu.Lock()
			subs[msg.ID] = sub{topic: topic, ch: ch}
			mu.Unlock()
			go func(id string, ch chan SSEEvent, runID string) {
				send := func(evt SSEEvent) error {
					payload, _ := json.Marshal(evt)
					return write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				finished := false
				if st, ok := s.Runs.Get(pr.Tenant, runID); ok {
					_ = send(st.Last)
					finished = st.Last.terminal()
				}
				for !finished {
					evt, ok := <-ch
					if !ok {
						return
					}
					if send(evt) != nil {
						return
					}
					finished = evt.terminal()
				}
				_ = write(wsMessage{Type: "complete", ID: id})
				mu.Lock()
				if cur, ok := subs[id]; ok && cur.ch == ch {
					delete(subs, id)
					mu.Unlock()
					s.Broker.Unsubscribe(topic, ch)
					return
				}
				mu.Unlock()
			}(msg.ID, ch, pl.RunID)
		case "complete":
			mu.Lock()
			s0, ok := subs[msg.ID]
			delete(subs, msg.ID)
			mu.Unlock()
			if ok {
				s.Broker.Unsubscribe(s0.topic, s0.ch)
			}
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.topic, s0.ch)
		delete(subs, id)
	}
}
