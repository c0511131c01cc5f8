package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/karthik-kata/StingerOps/internal/store"
)

// RunsIndexHandler handles GET /v1/optimizations.
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizations" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	items, next, err := s.Store.ListRuns(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List optimizations failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/optimizations/{id} and GET /v1/optimizations/{id}/events/stream.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/optimizations/"), "/")
	if rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	p := s.getPrincipal(r)
	switch {
	case len(parts) == 1:
		run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(run.Response)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusInternalServerError, "Get optimization failed", err.Error(), r.URL.Path)
			return
		}
		if st, ok := s.Runs.Get(p.Tenant, id); ok {
			writeJSON(w, http.StatusOK, st)
			return
		}
		writeProblem(w, http.StatusNotFound, "Optimization not found", id, r.URL.Path)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
		s.streamRun(w, r, p.Tenant, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// streamRun writes the run's progress as server-sent events. The latest
// cached event is replayed first; the stream ends after a terminal event.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, tenant, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	topic := runTopic(tenant, id)
	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	send := func(evt SSEEvent) {
		b, _ := json.Marshal(evt.Data)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	if st, ok := s.Runs.Get(tenant, id); ok {
		send(st.Last)
		if st.Last.terminal() {
			return
		}
	} else {
		heartbeat()
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			if evt.terminal() {
				return
			}
		case <-ticker.C:
			heartbeat()
		}
	}
}

func queryLimit(r *http.Request) int {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
