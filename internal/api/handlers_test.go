package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/karthik-kata/StingerOps/internal/config"
	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/model"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

func testConfig() config.Config {
	return config.Config{
		AuthMode:           "dev",
		RateRPS:            1000,
		RateBurst:          1000,
		WebhookMaxAttempts: 3,
		OptimizeTimeout:    30 * time.Second,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

// seedSample stores the built-in datasets for tenant.
func seedSample(t *testing.T, s *Server, tenant string) {
	t.Helper()
	for _, k := range dataset.Kinds {
		if _, _, err := s.Store.SaveDataset(context.Background(), tenant, k, dataset.Sample()); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeOptimize(t *testing.T, rr *httptest.ResponseRecorder) model.OptimizeResponse {
	t.Helper()
	var resp model.OptimizeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestHealthReady(t *testing.T) {
	h := newTestServer(t).Routes()
	if rr := do(t, h, http.MethodGet, "/healthz", "", nil); rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/readyz", "", nil); rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestOptimizeStoredDatasetByDefault(t *testing.T) {
	s := newTestServer(t)
	seedSample(t, s, "t_demo")
	h := s.Routes()
	rr := do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy","run_id":"r1"}`, nil)
	if rr.Code != 200 {
		t.Fatalf("optimize: %d %s", rr.Code, rr.Body.String())
	}
	resp := decodeOptimize(t, rr)
	if !resp.Success || resp.Results == nil {
		t.Fatalf("expected success, got %+v", resp.Report)
	}
	if resp.OptimizationID != "r1" || resp.DataSource != sourceStored {
		t.Fatalf("id=%q source=%q", resp.OptimizationID, resp.DataSource)
	}
	if resp.Results.TotalRoutes < 1 || resp.Results.TotalRoutes > 12 {
		t.Fatalf("total_routes = %d", resp.Results.TotalRoutes)
	}
	for _, rt := range resp.Results.Routes {
		if rt.StopsCount < 2 || rt.CycleMinutes <= 0 {
			t.Fatalf("bad route %+v", rt)
		}
	}
	if resp.Parameters == nil || resp.Parameters.FleetSize != 12 || resp.Parameters.Algorithm != "greedy" {
		t.Fatalf("parameters = %+v", resp.Parameters)
	}

	// stored and listed
	rr = do(t, h, http.MethodGet, "/v1/optimizations/r1", "", nil)
	if rr.Code != 200 || decodeOptimize(t, rr).OptimizationID != "r1" {
		t.Fatalf("get run: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodGet, "/v1/optimizations", "", nil)
	var list struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if rr.Code != 200 || len(list.Items) != 1 || list.Items[0]["id"] != "r1" {
		t.Fatalf("list runs: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodGet, "/v1/optimizations/missing", "", nil); rr.Code != 404 {
		t.Fatalf("missing run: %d", rr.Code)
	}
	// a finished run id cannot be reused
	if rr := do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy","run_id":"r1"}`, nil); rr.Code != http.StatusConflict {
		t.Fatalf("reused run id: %d", rr.Code)
	}
}

func TestOptimizeInlineData(t *testing.T) {
	h := newTestServer(t).Routes()
	body := `{
		"fleet_size": 2, "target_lines": 2, "k_transfers": 1, "algorithm": "both", "seed": 7,
		"buildings_data": [
			{"building_name": "A", "demand": 500, "latitude": 33.7750, "longitude": -84.3960},
			{"building_name": "B", "demand": 300, "latitude": 33.7770, "longitude": -84.3940}
		],
		"stops_data": [
			{"stop_name": "North", "stop_lat": 33.7750, "stop_lon": -84.3960},
			{"stop_name": "South", "stop_lat": 33.7770, "stop_lon": -84.3940}
		]
	}`
	rr := do(t, h, http.MethodPost, "/v1/optimize", body, nil)
	if rr.Code != 200 {
		t.Fatalf("optimize: %d %s", rr.Code, rr.Body.String())
	}
	resp := decodeOptimize(t, rr)
	if resp.DataSource != sourceRequest || resp.Results.TotalRoutes != 2 {
		t.Fatalf("source=%q routes=%d", resp.DataSource, resp.Results.TotalRoutes)
	}
	if resp.Results.Metrics.DemandCoverage != 1 {
		t.Fatalf("coverage = %v", resp.Results.Metrics.DemandCoverage)
	}
	if resp.Parameters.Seed != 7 {
		t.Fatalf("seed = %d", resp.Parameters.Seed)
	}
}

func TestOptimizeErrorsUseEnvelope(t *testing.T) {
	h := newTestServer(t).Routes()
	cases := []struct {
		name   string
		body   string
		status int
		kind   opt.Kind
	}{
		{"algorithm", `{"algorithm":"annealing"}`, 400, opt.KindInputValidation},
		{"fleet", `{"fleet_size":0,"buildings_data":[{"building_name":"A","demand":5,"latitude":33.7,"longitude":-84.3}],"stops_data":[{"stop_name":"S","stop_lat":33.7,"stop_lon":-84.3}]}`, 400, opt.KindInputValidation},
		{"row", `{"buildings_data":[{"building_name":"A","latitude":1,"longitude":1}],"stops_data":[{"stop_name":"S","stop_lat":1,"stop_lon":1}]}`, 400, opt.KindInputValidation},
		{"no stops", `{"buildings_data":[{"building_name":"A","demand":5,"latitude":33.7,"longitude":-84.3}]}`, 422, opt.KindDataAvailability},
		{"nothing stored", `{"use_existing_data":true}`, 422, opt.KindDataAvailability},
		{"nothing stored by default", `{}`, 422, opt.KindDataAvailability},
		{"empty inline", `{"buildings_data":[],"stops_data":[]}`, 422, opt.KindDataAvailability},
		{"stored disabled without rows", `{"use_existing_data":false}`, 422, opt.KindDataAvailability},
		{"stored and inline", `{"use_existing_data":true,"stops_data":[]}`, 400, opt.KindInputValidation},
	}
	for _, tc := range cases {
		rr := do(t, h, http.MethodPost, "/v1/optimize", tc.body, nil)
		if rr.Code != tc.status {
			t.Fatalf("%s: status %d, want %d (%s)", tc.name, rr.Code, tc.status, rr.Body.String())
		}
		resp := decodeOptimize(t, rr)
		if resp.Success || resp.ErrorKind != tc.kind || resp.Error == "" {
			t.Fatalf("%s: %+v", tc.name, resp.Report)
		}
	}
	if rr := do(t, h, http.MethodPost, "/v1/optimize", `{`, nil); rr.Code != 400 {
		t.Fatalf("bad json: %d", rr.Code)
	}
}

func TestOptimizeSampleEndpoint(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/v1/optimize/sample", "", nil)
	var got struct {
		Result     opt.Report `json:"result"`
		DataSource string     `json:"data_source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil || rr.Code != 200 {
		t.Fatalf("sample: %d %v", rr.Code, err)
	}
	if !got.Result.Success || got.DataSource != sourceSample {
		t.Fatalf("sample = %s", rr.Body.String())
	}
	// the sample is not stored, so a default run still has nothing to optimize
	if rr := do(t, h, http.MethodPost, "/v1/optimize", `{}`, nil); rr.Code != 422 {
		t.Fatalf("optimize after sample: %d %s", rr.Code, rr.Body.String())
	}
}

func TestOptimizeRequiresPlanner(t *testing.T) {
	s := newTestServer(t)
	seedSample(t, s, "t_x")
	h := s.Routes()
	rr := do(t, h, http.MethodPost, "/v1/optimize", `{}`, map[string]string{"X-Role": "viewer"})
	if rr.Code != 403 {
		t.Fatalf("viewer: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy"}`, map[string]string{"Authorization": "Bearer t_x:planner"})
	if rr.Code != 200 {
		t.Fatalf("planner token: %d %s", rr.Code, rr.Body.String())
	}
}

func TestOptimizeRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	seedSample(t, s, "t_demo")
	seedSample(t, s, "t_other")
	h := s.Routes()
	if rr := do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy"}`, nil); rr.Code != 200 {
		t.Fatalf("first: %d", rr.Code)
	}
	rr := do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy"}`, nil)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second: %d retry-after=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	// other tenants are unaffected
	if rr := do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy"}`, map[string]string{"X-Tenant-Id": "t_other"}); rr.Code != 200 {
		t.Fatalf("other tenant: %d", rr.Code)
	}
}

func TestDatasetUploadAndStoredRun(t *testing.T) {
	h := newTestServer(t).Routes()
	post := func(kind, ctype, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/datasets/"+kind, strings.NewReader(body))
		req.Header.Set("Content-Type", ctype)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}
	rr := post("buildings", "text/csv", "Building_Name, Demand, Latitude, Longitude\nA,500,33.7750,-84.3960\nB,300,33.7770,-84.3940\n")
	if rr.Code != 201 {
		t.Fatalf("buildings: %d %s", rr.Code, rr.Body.String())
	}
	var imp model.DatasetImport
	_ = json.Unmarshal(rr.Body.Bytes(), &imp)
	if imp.Count != 2 || imp.Kind != "buildings" || imp.ImportID == "" {
		t.Fatalf("import = %+v", imp)
	}
	rr = post("stops", "application/json", `[{"stop_name":"North","stop_lat":33.7750,"stop_lon":-84.3960},{"stop_name":"South","stop_lat":33.7770,"stop_lon":-84.3940,"has_shelter":true}]`)
	if rr.Code != 201 {
		t.Fatalf("stops: %d %s", rr.Code, rr.Body.String())
	}
	if rr := post("stops", "text/csv", "stop_name,stop_lat\nX,1\n"); rr.Code != 400 || !strings.Contains(rr.Body.String(), "stop_lon") {
		t.Fatalf("missing column: %d %s", rr.Code, rr.Body.String())
	}
	if rr := post("routes", "text/csv", "a\n"); rr.Code != 404 {
		t.Fatalf("unknown kind: %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/v1/datasets/stops", "", nil)
	var list struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if rr.Code != 200 || len(list.Items) != 2 {
		t.Fatalf("list stops: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/v1/optimize", `{"use_existing_data":true,"fleet_size":2,"target_lines":2,"algorithm":"greedy"}`, nil)
	if rr.Code != 200 {
		t.Fatalf("stored optimize: %d %s", rr.Code, rr.Body.String())
	}
	if resp := decodeOptimize(t, rr); resp.DataSource != sourceStored || resp.Results.TotalRoutes != 2 {
		t.Fatalf("source=%q routes=%d", resp.DataSource, resp.Results.TotalRoutes)
	}

	if rr := do(t, h, http.MethodDelete, "/v1/datasets/stops", "", nil); rr.Code != 204 {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/optimize", `{"use_existing_data":true}`, nil)
	if rr.Code != 422 || decodeOptimize(t, rr).ErrorKind != opt.KindDataAvailability {
		t.Fatalf("after delete: %d %s", rr.Code, rr.Body.String())
	}
}

func TestOptimizerConfigOverrides(t *testing.T) {
	s := newTestServer(t)
	seedSample(t, s, "t_demo")
	h := s.Routes()
	if rr := do(t, h, http.MethodPut, "/v1/admin/optimizer/config", `{"config":{"fleet_size":3,"algorithm":"greedy"}}`, nil); rr.Code != 200 {
		t.Fatalf("put: %d %s", rr.Code, rr.Body.String())
	}
	rr := do(t, h, http.MethodGet, "/v1/optimizer/config", "", nil)
	var got struct {
		Defaults config.Optimizer `json:"defaults"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Defaults.FleetSize != 3 || got.Defaults.Algorithm != "greedy" || got.Defaults.TargetLines != 12 {
		t.Fatalf("defaults = %+v", got.Defaults)
	}
	for _, bad := range []string{`{"config":{"algorithm":"sa"}}`, `{"config":{"fleet":3}}`, `{}`} {
		if rr := do(t, h, http.MethodPut, "/v1/admin/optimizer/config", bad, nil); rr.Code != 400 {
			t.Fatalf("put %s: %d", bad, rr.Code)
		}
	}
	if rr := do(t, h, http.MethodGet, "/v1/admin/optimizer/config", "", map[string]string{"X-Role": "planner"}); rr.Code != 403 {
		t.Fatalf("planner on admin config: %d", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/v1/optimize", `{}`, nil)
	if resp := decodeOptimize(t, rr); !resp.Success || resp.Parameters.FleetSize != 3 || resp.Parameters.Algorithm != "greedy" {
		t.Fatalf("tenant defaults not applied: %d %s", rr.Code, rr.Body.String())
	}
}

func TestSubscriptionsAndCompletionWebhook(t *testing.T) {
	s := newTestServer(t)
	seedSample(t, s, "t_demo")
	h := s.Routes()
	if rr := do(t, h, http.MethodPost, "/v1/subscriptions", `{"url":"ftp://x","events":["optimization.completed"]}`, nil); rr.Code != 400 {
		t.Fatalf("bad url: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/subscriptions", `{"url":"https://hooks.example.com/a","events":["route.planned"]}`, nil); rr.Code != 400 {
		t.Fatalf("bad event: %d", rr.Code)
	}
	rr := do(t, h, http.MethodPost, "/v1/subscriptions", `{"url":"https://hooks.example.com/a","events":["optimization.completed"],"secret":"s"}`, nil)
	if rr.Code != 201 {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)

	if rr := do(t, h, http.MethodPost, "/v1/optimize", `{"algorithm":"greedy"}`, nil); rr.Code != 200 {
		t.Fatalf("optimize: %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/v1/admin/webhook-deliveries", "", nil)
	var list struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0]["eventType"] != model.EventOptimizationCompleted {
		t.Fatalf("deliveries: %s", rr.Body.String())
	}

	if rr := do(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.ID, "", nil); rr.Code != 204 {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.ID, "", nil); rr.Code != 404 {
		t.Fatalf("delete again: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/admin/webhook-deliveries/nope/retry", "", nil); rr.Code != 404 {
		t.Fatalf("retry unknown: %d", rr.Code)
	}
}

func TestProgressStreamSSE(t *testing.T) {
	s := newTestServer(t)
	seedSample(t, s, "t_demo")
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/optimizations/live-1/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	if !sc.Scan() || sc.Text() != "event: heartbeat" {
		t.Fatalf("first line %q", sc.Text())
	}

	go func() {
		if r, err := http.Post(ts.URL+"/v1/optimize", "application/json", strings.NewReader(`{"algorithm":"greedy","run_id":"live-1"}`)); err == nil {
			r.Body.Close()
		}
	}()
	var events []string
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	if len(events) < 3 {
		t.Fatalf("events = %v", events)
	}
	if events[0] != EventRunStarted || events[len(events)-1] != EventRunCompleted {
		t.Fatalf("events = %v", events)
	}

	// a finished run replays its terminal event and closes
	resp2, err := http.Get(ts.URL + "/v1/optimizations/live-1/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp2.Body)
	if !strings.HasPrefix(buf.String(), "event: "+EventRunCompleted) {
		t.Fatalf("replay = %q", buf.String())
	}
}

func TestProgressStreamWebSocket(t *testing.T) {
	s := newTestServer(t)
	seedSample(t, s, "t_demo")
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/optimizations/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		t.Fatal(err)
	}
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		t.Fatalf("ack: %+v %v", ack, err)
	}
	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: json.RawMessage(`{}`)}); err != nil {
		t.Fatal(err)
	}
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "error" {
		t.Fatalf("missing runId: %+v %v", msg, err)
	}
	_ = conn.ReadJSON(&msg) // complete
	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "2", Payload: json.RawMessage(`{"runId":"ws-1"}`)}); err != nil {
		t.Fatal(err)
	}

	go func() {
		if r, err := http.Post(ts.URL+"/v1/optimize", "application/json", strings.NewReader(`{"algorithm":"greedy","run_id":"ws-1"}`)); err == nil {
			r.Body.Close()
		}
	}()
	var last SSEEvent
	for {
		var m wsMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		if m.Type == "complete" && m.ID == "2" {
			break
		}
		if m.Type == "next" {
			if err := json.Unmarshal(m.Payload, &last); err != nil {
				t.Fatal(err)
			}
		}
	}
	if last.Type != EventRunCompleted || last.Data["runId"] != "ws-1" {
		t.Fatalf("last event = %+v", last)
	}
}

func TestOpenAPIDocs(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/openapi.json", "", nil)
	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil || rr.Code != 200 {
		t.Fatalf("openapi.json: %d %v", rr.Code, err)
	}
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/v1/optimize"]; !ok {
		t.Fatalf("paths = %v", paths)
	}
	if rr := do(t, h, http.MethodGet, "/debug/info", "", nil); rr.Code != 200 || !strings.Contains(rr.Body.String(), "fleet_size") {
		t.Fatalf("debug: %d %s", rr.Code, rr.Body.String())
	}
}
