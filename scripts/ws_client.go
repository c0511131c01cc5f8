// Package main runs a demo WebSocket client that watches an optimization's
// progress while it executes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/model"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	algorithm := "genetic"
	if len(os.Args) > 1 {
		algorithm = os.Args[1]
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	runID := "demo-" + uuid.NewString()[:8]

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/optimizations/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	pl, _ := json.Marshal(map[string]string{"runId": runID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	// Start the run on the sample dataset, sent inline.
	time.Sleep(200 * time.Millisecond)
	d := dataset.Sample()
	body, err := json.Marshal(model.OptimizeRequest{
		RunID:         runID,
		Algorithm:     algorithm,
		TimeBudgetMs:  10000,
		BuildingsData: d.Buildings,
		SourcesData:   d.Sources,
		StopsData:     d.Stops,
	})
	if err != nil {
		log.Fatal(err)
	}
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	out, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	log.Printf("optimize %s: %d %s", runID, resp.StatusCode, out)

	select {
	case <-time.After(5 * time.Second):
	case <-done:
	}
}
