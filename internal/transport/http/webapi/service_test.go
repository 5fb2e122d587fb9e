package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"voice-assistant-go/internal/app/assistant"
	"voice-assistant-go/internal/core/connection"
	"voice-assistant-go/internal/domain/conversation"
	"voice-assistant-go/internal/domain/eventbus"
	platformtesting "voice-assistant-go/internal/platform/testing"
)

type stubDetector struct{}

func (stubDetector) Start() error           { return nil }
func (stubDetector) Stop()                  {}
func (stubDetector) IsSpeechDetected() bool { return false }

type stubSender struct{ connected bool }

func (s *stubSender) Connect(context.Context) error { s.connected = true; return nil }
func (s *stubSender) Disconnect() error             { s.connected = false; return nil }
func (s *stubSender) Send(context.Context, connection.SpeechRequest) (connection.Response, error) {
	return connection.Response{}, nil
}
func (s *stubSender) IsConnected() bool       { return s.connected }
func (s *stubSender) State() connection.State { return connection.StateDisconnected }

func newTestRouter(t *testing.T) (*gin.Engine, *conversation.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := platformtesting.SetupTestLogger(t)
	manager := conversation.NewManager(conversation.NewMemory(conversation.Config{MaxHistory: 10}), logger)

	orch := assistant.New(assistant.Options{}, assistant.Dependencies{
		Detector: stubDetector{},
		Conn:     &stubSender{},
		History:  manager,
		Bus:      eventbus.New(),
		Logger:   logger,
	})
	t.Cleanup(func() { orch.Stop() })

	service := NewService(orch, manager, logger)
	router := gin.New()
	service.Register(context.Background(), router.Group("/api"))
	return router, manager
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/assistant/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Status assistant.Status `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Status.Running {
		t.Error("fresh pipeline must not report running")
	}

	w = doRequest(t, router, http.MethodGet, "/api/assistant/status?events=5")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with bounded event count, got %d", w.Code)
	}
	w = doRequest(t, router, http.MethodGet, "/api/assistant/status?events=oops")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad event count, got %d", w.Code)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/assistant/start")
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodPost, "/api/assistant/start")
	if w.Code != http.StatusConflict {
		t.Fatalf("double start: expected 409, got %d", w.Code)
	}

	w = doRequest(t, router, http.MethodPost, "/api/assistant/stop")
	if w.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	router, manager := newTestRouter(t)
	ctx := context.Background()

	if err := manager.AddInteraction(ctx, "hello", "hi", nil); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := manager.AddInteraction(ctx, "weather?", "sunny", nil); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	w := doRequest(t, router, http.MethodGet, "/api/conversation")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Count   int                              `json:"count"`
		History []conversation.InteractionRecord `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("expected 2 records, got %d", body.Count)
	}

	w = doRequest(t, router, http.MethodGet, "/api/conversation?limit=1")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 1 || body.History[0].UserInput != "weather?" {
		t.Errorf("expected newest record only, got %+v", body.History)
	}

	w = doRequest(t, router, http.MethodGet, "/api/conversation?limit=abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestClearHistoryEndpoint(t *testing.T) {
	router, manager := newTestRouter(t)
	ctx := context.Background()

	if err := manager.AddInteraction(ctx, "hello", "hi", nil); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	w := doRequest(t, router, http.MethodDelete, "/api/conversation")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	n, err := manager.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty history after clear, got %d", n)
	}
}

func TestSystemInfoEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/system/info")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Error("expected uptime_seconds in system info")
	}
}
