package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"terminal-core/internal/engine"
	"terminal-core/internal/events"
	"terminal-core/internal/monitor"
	"terminal-core/internal/state"
	"terminal-core/internal/symbols"
	"terminal-core/internal/terminal"
	"terminal-core/pkg/cache"
	"terminal-core/pkg/db"
)

type testEnv struct {
	server *httptest.Server
	bus    *events.Bus
}

func newTestAPIServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	catalog, err := symbols.NewCatalog([]symbols.Symbol{
		{ID: "BTCUSDT", Base: "BTC", Quote: "USDT", Limits: &symbols.Limits{
			Cost: &symbols.Range{Min: symbols.Bound(5)},
		}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	bus := events.NewBus()
	prices := cache.NewPriceCache()
	prices.Set("BTCUSDT", 20000, time.Now())
	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)
	svc := engine.NewImpl(engine.Config{
		Catalog:  catalog,
		Prices:   prices,
		StateMgr: state.NewManager(database.Queries(), bus),
		Bus:      bus,
		Queries:  database.Queries(),
		Metrics:  metrics,
		Defaults: terminal.DefaultDefaults(),
		Meta:     engine.SystemStatus{Version: "test", Feed: "mock"},
	})

	server := NewServer(svc, metrics, Options{Gatherer: reg})
	httpServer := httptest.NewServer(server.Router)
	t.Cleanup(func() {
		httpServer.Close()
		svc.Close()
		_ = database.Close()
	})
	return &testEnv{server: httpServer, bus: bus}
}

func doJSONRequest(t *testing.T, client *http.Client, method, url string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func openSession(t *testing.T, env *testEnv, body map[string]any) terminal.View {
	t.Helper()
	var view terminal.View
	status := doJSONRequest(t, env.server.Client(), http.MethodPost, env.server.URL+"/api/sessions", body, &view)
	if status != http.StatusCreated || view.ID == "" {
		t.Fatalf("open session status=%d view=%+v", status, view)
	}
	return view
}

func TestOpenSessionValidation(t *testing.T) {
	env := newTestAPIServer(t)
	client := env.server.Client()

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"empty", map[string]any{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown symbol", map[string]any{"symbol": "DOGEUSDT"}, http.StatusNotFound, "UNKNOWN_SYMBOL"},
		{"unknown position", map[string]any{"position_id": "nope"}, http.StatusNotFound, "POSITION_NOT_FOUND"},
		{"negative leverage", map[string]any{"symbol": "BTCUSDT", "leverage": -1}, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorResponse
			status := doJSONRequest(t, client, http.MethodPost, env.server.URL+"/api/sessions", tt.body, &resp)
			if status != tt.status || resp.Code != tt.code {
				t.Fatalf("got status=%d code=%s, want %d %s", status, resp.Code, tt.status, tt.code)
			}
		})
	}
}

func TestEditAndAssembleFlow(t *testing.T) {
	env := newTestAPIServer(t)
	client := env.server.Client()
	view := openSession(t, env, map[string]any{"symbol": "btcusdt"})
	base := env.server.URL + "/api/sessions/" + view.ID

	var edit engine.EditResult
	status := doJSONRequest(t, client, http.MethodPatch, base+"/fields", map[string]any{"key": "positionSize", "value": "1"}, &edit)
	if status != http.StatusOK {
		t.Fatalf("edit status=%d", status)
	}
	if edit.Field.Error == nil || edit.Field.Error.Kind != terminal.ErrorKindLimit {
		t.Fatalf("expected cost limit error, got %+v", edit.Field)
	}

	var rejected struct {
		Code string        `json:"code"`
		View terminal.View `json:"view"`
	}
	status = doJSONRequest(t, client, http.MethodPost, base+"/payload", nil, &rejected)
	if status != http.StatusUnprocessableEntity || rejected.Code != "INVALID_DRAFT" || rejected.View.Errors == 0 {
		t.Fatalf("assemble status=%d resp=%+v", status, rejected)
	}

	var resp errorResponse
	status = doJSONRequest(t, client, http.MethodPatch, base+"/fields", map[string]any{"key": "bogus", "value": "1"}, &resp)
	if status != http.StatusBadRequest || resp.Code != "UNKNOWN_FIELD" {
		t.Fatalf("unknown field status=%d code=%s", status, resp.Code)
	}

	doJSONRequest(t, client, http.MethodPatch, base+"/fields", map[string]any{"key": "positionSize", "value": "1000"}, nil)
	var payload terminal.Payload
	status = doJSONRequest(t, client, http.MethodPost, base+"/payload", nil, &payload)
	if status != http.StatusOK || payload.Entry == nil || payload.Entry.PositionSize != 1000 {
		t.Fatalf("assemble status=%d payload=%+v", status, payload)
	}

	var stored []engine.PayloadInfo
	status = doJSONRequest(t, client, http.MethodGet, base+"/payloads?limit=5", nil, &stored)
	if status != http.StatusOK || len(stored) != 1 {
		t.Fatalf("payloads status=%d n=%d", status, len(stored))
	}
}

func TestPanelsAndTargets(t *testing.T) {
	env := newTestAPIServer(t)
	client := env.server.Client()
	view := openSession(t, env, map[string]any{"symbol": "BTCUSDT"})
	base := env.server.URL + "/api/sessions/" + view.ID

	var resp errorResponse
	status := doJSONRequest(t, client, http.MethodPost, base+"/groups/dca/targets", nil, &resp)
	if status != http.StatusConflict || resp.Code != "PANEL_COLLAPSED" {
		t.Fatalf("add on collapsed status=%d code=%s", status, resp.Code)
	}

	var v terminal.View
	status = doJSONRequest(t, client, http.MethodPost, base+"/panels/dca/toggle", nil, &v)
	if status != http.StatusOK {
		t.Fatalf("toggle status=%d", status)
	}
	status = doJSONRequest(t, client, http.MethodPost, base+"/groups/dca/targets", nil, &v)
	if status != http.StatusOK {
		t.Fatalf("add status=%d", status)
	}
	status = doJSONRequest(t, client, http.MethodDelete, base+"/groups/dca/targets/x", nil, &resp)
	if status != http.StatusBadRequest || resp.Code != "INVALID_TARGET" {
		t.Fatalf("bad target status=%d code=%s", status, resp.Code)
	}
	status = doJSONRequest(t, client, http.MethodDelete, base+"/groups/dca/targets", nil, &v)
	if status != http.StatusOK {
		t.Fatalf("remove status=%d", status)
	}
	status = doJSONRequest(t, client, http.MethodPost, base+"/panels/nope/toggle", nil, &resp)
	if status != http.StatusBadRequest || resp.Code != "UNKNOWN_PANEL" {
		t.Fatalf("unknown panel status=%d code=%s", status, resp.Code)
	}
}

func TestPositionIngestAndRefresh(t *testing.T) {
	env := newTestAPIServer(t)
	client := env.server.Client()

	snapshot := map[string]any{
		"symbol":            "BTCUSDT",
		"side":              "long",
		"buyPrice":          20000,
		"amount":            0.5,
		"positionSizeQuote": 10000,
		"leverage":          5,
		"status":            "open",
		"version":           2,
		"reBuyTargets":      map[string]any{"1": map[string]any{"targetPricePercentage": -5, "amountPercentage": 100}},
	}
	var ack struct {
		Applied bool `json:"applied"`
	}
	status := doJSONRequest(t, client, http.MethodPut, env.server.URL+"/api/positions/p-1", snapshot, &ack)
	if status != http.StatusOK || !ack.Applied {
		t.Fatalf("ingest status=%d ack=%+v", status, ack)
	}
	snapshot["version"] = 1
	doJSONRequest(t, client, http.MethodPut, env.server.URL+"/api/positions/p-1", snapshot, &ack)
	if ack.Applied {
		t.Fatal("older snapshot applied")
	}

	view := openSession(t, env, map[string]any{"position_id": "p-1"})
	if view.Position == nil || view.Position.Version != 2 || view.EntryPrice != 20000 {
		t.Fatalf("view %+v", view)
	}

	// no reconciliation source: refresh re-applies the held snapshot
	var refreshed terminal.View
	status = doJSONRequest(t, client, http.MethodPost, env.server.URL+"/api/sessions/"+view.ID+"/refresh", nil, &refreshed)
	if status != http.StatusOK || refreshed.Position.Version != 2 {
		t.Fatalf("refresh status=%d", status)
	}

	var resp errorResponse
	status = doJSONRequest(t, client, http.MethodPut, env.server.URL+"/api/positions/p-2", map[string]any{"side": "up"}, &resp)
	if status != http.StatusBadRequest || resp.Code != "INVALID_SIDE" {
		t.Fatalf("bad side status=%d code=%s", status, resp.Code)
	}
}

func TestSessionLifecycleAndStatus(t *testing.T) {
	env := newTestAPIServer(t)
	client := env.server.Client()
	view := openSession(t, env, map[string]any{"symbol": "BTCUSDT"})

	var list []engine.SessionInfo
	if status := doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/sessions", nil, &list); status != http.StatusOK || len(list) != 1 {
		t.Fatalf("list status=%d n=%d", status, len(list))
	}

	var st engine.SystemStatus
	if status := doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/system/status", nil, &st); status != http.StatusOK || st.Sessions != 1 || st.Version != "test" {
		t.Fatalf("status=%d st=%+v", status, st)
	}

	if status := doJSONRequest(t, client, http.MethodDelete, env.server.URL+"/api/sessions/"+view.ID, nil, nil); status != http.StatusOK {
		t.Fatalf("close status=%d", status)
	}
	var resp errorResponse
	status := doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/sessions/"+view.ID, nil, &resp)
	if status != http.StatusNotFound || resp.Code != "SESSION_NOT_FOUND" {
		t.Fatalf("get closed status=%d code=%s", status, resp.Code)
	}

	var syms []engine.SymbolInfo
	if status := doJSONRequest(t, client, http.MethodGet, env.server.URL+"/api/symbols", nil, &syms); status != http.StatusOK || len(syms) != 1 || syms[0].LastPrice != 20000 {
		t.Fatalf("symbols status=%d syms=%+v", status, syms)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestAPIServer(t)
	openSession(t, env, map[string]any{"symbol": "BTCUSDT"})

	resp, err := env.server.Client().Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "terminal_sessions_open 1") {
		t.Fatalf("metrics body missing gauge:\n%s", body)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestAPIServer(t)
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id=%q", got)
	}
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes=%v", codes)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TimeoutMiddleware(20 * time.Millisecond))
	r.GET("/silent", func(c *gin.Context) { <-c.Request.Context().Done() })
	r.GET("/error", func(c *gin.Context) {
		<-c.Request.Context().Done()
		respondErr(c, c.Request.Context().Err())
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		path string
		code int
	}{
		{"/silent", http.StatusGatewayTimeout},
		{"/error", http.StatusGatewayTimeout},
		{"/fast", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.code {
				t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
			}
			if tt.code == http.StatusGatewayTimeout && !strings.Contains(w.Body.String(), "TIMEOUT") {
				t.Fatalf("body=%s", w.Body.String())
			}
		})
	}
}

func TestSessionStreamPushesTicks(t *testing.T) {
	env := newTestAPIServer(t)
	view := openSession(t, env, map[string]any{"symbol": "BTCUSDT"})

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/sessions/" + view.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first terminal.View
	if err := conn.ReadJSON(&first); err != nil || first.ID != view.ID {
		t.Fatalf("initial view err=%v id=%s", err, first.ID)
	}

	env.bus.Publish(events.EventPriceTick, events.PriceTick{Symbol: "BTCUSDT", Price: 20500, Timestamp: time.Now().Add(time.Second)})
	var next terminal.View
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if next.EntryPrice != 20500 {
		t.Fatalf("entry price %v", next.EntryPrice)
	}
}

func TestSessionStreamUnknownSession(t *testing.T) {
	env := newTestAPIServer(t)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/sessions/missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resp=%v", resp)
	}
}
