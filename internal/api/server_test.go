package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-cameras/internal/audit"
	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-cameras/internal/infrastructure/logging"
)

// fakeCameras is an in-memory CameraService.
type fakeCameras struct {
	mu       sync.Mutex
	views    map[string]camera.DeviceView
	executed []camera.Command
	execErr  error
	override map[string]*camera.AuthMode
	infos    []camera.RawDeviceInfo
	rescans  int
}

func newFakeCameras(ids ...string) *fakeCameras {
	f := &fakeCameras{
		views:    make(map[string]camera.DeviceView),
		override: make(map[string]*camera.AuthMode),
	}
	for _, id := range ids {
		f.views[id] = camera.DeviceView{
			ID:            id,
			Name:          "Camera " + id,
			Family:        camera.FamilyFoscamHD2,
			Responding:    "up",
			MotionAddress: camera.MotionAddress(id),
			Attributes:    map[string]float64{"ST": 1},
		}
	}
	return f
}

func (f *fakeCameras) Devices() []camera.DeviceView {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]camera.DeviceView, 0, len(f.views))
	for _, v := range f.views {
		out = append(out, v)
	}
	return out
}

func (f *fakeCameras) Device(id string) (camera.DeviceView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.views[id]
	return v, ok
}

func (f *fakeCameras) Execute(_ context.Context, id string, cmd camera.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.views[id]; !ok {
		return fmt.Errorf("%w: %s", camera.ErrDeviceNotFound, id)
	}
	if f.execErr != nil {
		return f.execErr
	}
	f.executed = append(f.executed, cmd)
	return nil
}

func (f *fakeCameras) Reconcile(_ context.Context, infos []camera.RawDeviceInfo) camera.ReconcileSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, infos...)
	return camera.ReconcileSummary{Created: len(infos)}
}

func (f *fakeCameras) Rescan(context.Context) camera.ReconcileSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescans++
	return camera.ReconcileSummary{Updated: len(f.views)}
}

func (f *fakeCameras) SetAuthOverride(_ context.Context, id string, mode *camera.AuthMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.views[id]; !ok {
		return fmt.Errorf("%w: %s", camera.ErrDeviceNotFound, id)
	}
	f.override[id] = mode
	return nil
}

func (f *fakeCameras) Metrics() camera.BridgeMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return camera.BridgeMetrics{Cameras: len(f.views), Responding: len(f.views)}
}

// fakeAudit keeps recorded entries in memory.
type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.AuditLog
	filter  audit.Filter
}

func (f *fakeAudit) Record(_ context.Context, deviceID, action, source string, details map[string]any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := audit.AuditLog{Action: action, DeviceID: deviceID, Source: source, Outcome: audit.OutcomeOK, Details: details}
	if err != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.ErrorCode = camera.ErrorCode(err)
	}
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return &audit.ListResult{Logs: f.entries, Total: len(f.entries), Limit: filter.Limit, Offset: filter.Offset}, nil
}

type fakeConn struct{ connected bool }

func (c fakeConn) IsConnected() bool { return c.connected }

type fakeDB struct{}

func (fakeDB) Stats() sql.DBStats { return sql.DBStats{OpenConnections: 1, Idle: 1} }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer creates a Server backed by fakes with a running hub.
func testServer(t *testing.T, cams *fakeCameras) *Server {
	t.Helper()

	log := testLogger()
	hub := NewHub(testWSConfig(), log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:          testWSConfig(),
		JWT:         config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 60},
		Logger:      log,
		Cameras:     cams,
		MQTT:        fakeConn{connected: true},
		DB:          fakeDB{},
		ExternalHub: hub,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// doRequest sends an authenticated request through the router.
func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequestWithToken(t, srv, method, path, body, testToken(t, "tester"))
}

// doRequestWithToken sends a request carrying token as a bearer
// credential; an empty token sends no Authorization header.
func doRequestWithToken(t *testing.T, srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Cameras: newFakeCameras()}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("expected error without camera service")
	}
	if _, err := New(Deps{Logger: testLogger(), Cameras: newFakeCameras()}); err == nil {
		t.Error("expected error without jwt secret")
	}
}

// ─── Health and Metrics ────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := testServer(t, newFakeCameras())

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decode[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_DegradedWithoutMQTT(t *testing.T) {
	srv := testServer(t, newFakeCameras())
	srv.mqtt = fakeConn{connected: false}

	resp := decode[map[string]any](t, doRequest(t, srv, http.MethodGet, "/api/v1/health", ""))
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
}

func TestMetrics(t *testing.T) {
	srv := testServer(t, newFakeCameras("aa", "bb"))

	w := doRequest(t, srv, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}

	m := decode[SystemMetrics](t, w)
	if m.Cameras.Cameras != 2 {
		t.Errorf("cameras = %d, want 2", m.Cameras.Cameras)
	}
	if !m.MQTT.Connected {
		t.Error("mqtt should report connected")
	}
	if m.Database == nil || m.Database.OpenConnections != 1 {
		t.Errorf("database metrics = %+v", m.Database)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("expected goroutine count")
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv := testServer(t, newFakeCameras())

	w := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a uuid", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS(t *testing.T) {
	srv := testServer(t, newFakeCameras())
	srv.cfg.CORS.AllowedOrigins = []string{"http://dash.local"}

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed origin", "http://dash.local", "http://dash.local"},
		{"other origin", "http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/cameras", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("ACAO = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, newFakeCameras())
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t, newFakeCameras())
	if w := doRequest(t, srv, http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Cameras ───────────────────────────────────────────────────────

func TestListCameras(t *testing.T) {
	srv := testServer(t, newFakeCameras("00626e41d9a2"))

	resp := decode[CameraListResponse](t, doRequest(t, srv, http.MethodGet, "/api/v1/cameras", ""))
	if resp.Count != 1 || len(resp.Cameras) != 1 {
		t.Fatalf("count = %d, cameras = %d", resp.Count, len(resp.Cameras))
	}
	if resp.Cameras[0].MotionAddress != "00626e41d9a2m" {
		t.Errorf("motion address = %q", resp.Cameras[0].MotionAddress)
	}
}

func TestGetCamera(t *testing.T) {
	srv := testServer(t, newFakeCameras("cam1"))

	w := doRequest(t, srv, http.MethodGet, "/api/v1/cameras/cam1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if v := decode[camera.DeviceView](t, w); v.ID != "cam1" {
		t.Errorf("id = %q", v.ID)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/cameras/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing camera status = %d, want 404", w.Code)
	}
}

func TestSetAttribute(t *testing.T) {
	cams := newFakeCameras("cam1")
	srv := testServer(t, cams)

	w := doRequest(t, srv, http.MethodPut, "/api/v1/cameras/cam1/attributes/gv8", `{"value": 3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	if len(cams.executed) != 1 {
		t.Fatalf("executed = %d, want 1", len(cams.executed))
	}
	want := camera.SetAttribute{Attribute: "GV8", Value: 3}
	if cams.executed[0] != camera.Command(want) {
		t.Errorf("executed %+v, want %+v", cams.executed[0], want)
	}
}

func TestSetAttribute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		execErr  error
		wantCode int
	}{
		{"invalid json", "/api/v1/cameras/cam1/attributes/GV8", `{`, nil, http.StatusBadRequest},
		{"missing value", "/api/v1/cameras/cam1/attributes/GV8", `{}`, nil, http.StatusBadRequest},
		{"unknown camera", "/api/v1/cameras/nope/attributes/GV8", `{"value": 1}`, nil, http.StatusNotFound},
		{"unsupported", "/api/v1/cameras/cam1/attributes/GV99", `{"value": 1}`,
			fmt.Errorf("%w: GV99", camera.ErrUnsupported), http.StatusBadRequest},
		{"out of range", "/api/v1/cameras/cam1/attributes/GV8", `{"value": 500}`,
			fmt.Errorf("%w: 500", camera.ErrInvalidValue), http.StatusBadRequest},
		{"unreachable", "/api/v1/cameras/cam1/attributes/GV8", `{"value": 1}`,
			camera.ErrUnreachable, http.StatusBadGateway},
		{"timeout", "/api/v1/cameras/cam1/attributes/GV8", `{"value": 1}`,
			context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"protocol", "/api/v1/cameras/cam1/attributes/GV8", `{"value": 1}`,
			camera.ErrProtocol, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cams := newFakeCameras("cam1")
			cams.execErr = tt.execErr
			srv := testServer(t, cams)

			w := doRequest(t, srv, http.MethodPut, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestCommand(t *testing.T) {
	cams := newFakeCameras("cam1")
	srv := testServer(t, cams)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/cameras/cam1/commands",
		`{"command": "goto_preset", "parameters": {"preset": 2}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(cams.executed) != 1 || cams.executed[0] != camera.Command(camera.GotoPreset{Preset: 2}) {
		t.Errorf("executed = %+v", cams.executed)
	}

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"missing command", `{}`, http.StatusBadRequest},
		{"unknown command", `{"command": "pan_left"}`, http.StatusBadRequest},
		{"bad parameters", `{"command": "goto_preset", "parameters": {"preset": -1}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodPost, "/api/v1/cameras/cam1/commands", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestSetAuth(t *testing.T) {
	cams := newFakeCameras("cam1")
	srv := testServer(t, cams)

	w := doRequest(t, srv, http.MethodPut, "/api/v1/cameras/cam1/auth", `{"mode": "digest"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := cams.override["cam1"]; got == nil || *got != camera.AuthDigest {
		t.Errorf("override = %v, want digest", got)
	}

	w = doRequest(t, srv, http.MethodPut, "/api/v1/cameras/cam1/auth", `{"mode": ""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if got := cams.override["cam1"]; got != nil {
		t.Errorf("override = %v, want cleared", *got)
	}

	if w := doRequest(t, srv, http.MethodPut, "/api/v1/cameras/cam1/auth", `{"mode": "ntlm"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", w.Code)
	}
	if w := doRequest(t, srv, http.MethodPut, "/api/v1/cameras/nope/auth", `{"mode": "basic"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown camera status = %d, want 404", w.Code)
	}
}

func TestDiscovery(t *testing.T) {
	cams := newFakeCameras()
	srv := testServer(t, cams)

	body := `{"devices": [{"id": "00626E41D9A2", "name": "Porch", "ip": "192.168.1.20", "port": 88, "sys_version": "2.x.1.59", "type": "FoscamHD2"}]}`
	w := doRequest(t, srv, http.MethodPost, "/api/v1/discovery", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if s := decode[camera.ReconcileSummary](t, w); s.Created != 1 {
		t.Errorf("created = %d, want 1", s.Created)
	}
	if len(cams.infos) != 1 || cams.infos[0].Port != 88 {
		t.Errorf("infos = %+v", cams.infos)
	}

	if w := doRequest(t, srv, http.MethodPost, "/api/v1/discovery", `{"devices": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty discovery status = %d, want 400", w.Code)
	}
}

func TestRescan(t *testing.T) {
	cams := newFakeCameras("cam1")
	srv := testServer(t, cams)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/rescan", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if cams.rescans != 1 {
		t.Errorf("rescans = %d, want 1", cams.rescans)
	}
}

// ─── Audit ─────────────────────────────────────────────────────────

func TestAudit_RecordsActions(t *testing.T) {
	cams := newFakeCameras("cam1")
	srv := testServer(t, cams)
	trail := &fakeAudit{}
	srv.audit = trail

	doRequest(t, srv, http.MethodPut, "/api/v1/cameras/cam1/attributes/brightness", `{"value": 40}`)
	doRequest(t, srv, http.MethodPost, "/api/v1/cameras/nope/commands", `{"command": "reboot"}`)
	doRequest(t, srv, http.MethodPut, "/api/v1/cameras/cam1/auth", `{"mode": "digest"}`)
	doRequest(t, srv, http.MethodPost, "/api/v1/rescan", "")

	if len(trail.entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(trail.entries))
	}

	tests := []struct {
		action, device, outcome string
	}{
		{"set_attribute", "cam1", audit.OutcomeOK},
		{"reboot", "nope", audit.OutcomeFailed},
		{audit.ActionAuthOverride, "cam1", audit.OutcomeOK},
		{audit.ActionRescan, "", audit.OutcomeOK},
	}
	for i, tt := range tests {
		got := trail.entries[i]
		if got.Action != tt.action || got.DeviceID != tt.device || got.Outcome != tt.outcome {
			t.Errorf("entry %d = %s/%s/%s, want %s/%s/%s", i,
				got.Action, got.DeviceID, got.Outcome, tt.action, tt.device, tt.outcome)
		}
		if got.Source != "api" {
			t.Errorf("entry %d source = %q, want api", i, got.Source)
		}
		if _, ok := got.Details["request_id"]; !ok {
			t.Errorf("entry %d missing request_id", i)
		}
		if got.Details["subject"] != "tester" {
			t.Errorf("entry %d subject = %v, want tester", i, got.Details["subject"])
		}
	}
	if trail.entries[1].ErrorCode != camera.ErrCodeNotConfigured {
		t.Errorf("error code = %q", trail.entries[1].ErrorCode)
	}
	if trail.entries[0].Details["attribute"] != "BRIGHTNESS" {
		t.Errorf("details = %v", trail.entries[0].Details)
	}
}

func TestListAudit(t *testing.T) {
	srv := testServer(t, newFakeCameras("cam1"))
	trail := &fakeAudit{}
	srv.audit = trail
	trail.Record(context.Background(), "cam1", "reboot", "mqtt", nil, nil)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/audit?device_id=cam1&action=reboot&limit=10&offset=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	result := decode[audit.ListResult](t, w)
	if result.Total != 1 || len(result.Logs) != 1 || result.Logs[0].Source != "mqtt" {
		t.Errorf("result = %+v", result)
	}
	want := audit.Filter{DeviceID: "cam1", Action: "reboot", Limit: 10, Offset: 5}
	if trail.filter != want {
		t.Errorf("filter = %+v, want %+v", trail.filter, want)
	}

	if w := doRequest(t, srv, http.MethodGet, "/api/v1/audit?limit=ten", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestListAudit_NotConfigured(t *testing.T) {
	srv := testServer(t, newFakeCameras())

	if w := doRequest(t, srv, http.MethodGet, "/api/v1/audit", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestStartClose(t *testing.T) {
	srv := testServer(t, newFakeCameras())

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("health check before start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestStart_BindFailure(t *testing.T) {
	first := testServer(t, newFakeCameras())
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { first.Close() })

	_, port, _ := strings.Cut(first.Addr(), ":")
	second := testServer(t, newFakeCameras())
	fmt.Sscanf(port, "%d", &second.cfg.Port) //nolint:errcheck // port comes from a bound listener
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Error("expected bind failure on a used port")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"camera.attribute_changed": {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"bridge.health": {}},
	}
	hub.Register(subscribed)
	hub.Register(other)
	if hub.ClientCount() != 2 {
		t.Fatalf("client count = %d, want 2", hub.ClientCount())
	}

	hub.Broadcast("camera.attribute_changed", map[string]any{"address": "cam1", "attribute": "ST"})

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "camera.attribute_changed" {
			t.Errorf("event_type = %q", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}

	hub.Unregister(subscribed)
	if hub.ClientCount() != 1 {
		t.Errorf("after unregister count = %d, want 1", hub.ClientCount())
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv := testServer(t, newFakeCameras())
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"camera.attribute_changed"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("subscribe response = %+v", ack)
	}

	srv.hub.Broadcast("camera.attribute_changed", map[string]any{"address": "cam1", "attribute": "GV8", "value": 3})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != "camera.attribute_changed" {
		t.Errorf("event = %+v", event)
	}
}
