package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/careline/internal/adapter/http"
	"github.com/Strob0t/careline/internal/adapter/memkv"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/port/a2a"
	"github.com/Strob0t/careline/internal/port/capability"
	"github.com/Strob0t/careline/internal/port/messagequeue"
	"github.com/Strob0t/careline/internal/service"
)

var errOffline = errors.New("offline")

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, capability.ExtractionRequest) (capability.Extraction, error) {
	return capability.Extraction{Reply: "How can I help you today?"}, nil
}

type offlineTriage struct{}

func (offlineTriage) Start(context.Context, capability.TriageStart) (capability.TriageTurn, error) {
	return capability.TriageTurn{}, errOffline
}

func (offlineTriage) Continue(context.Context, capability.TriageRef, string) (capability.TriageTurn, error) {
	return capability.TriageTurn{}, errOffline
}

type offlineInsurance struct{}

func (offlineInsurance) Discovery(context.Context, capability.DiscoveryRequest) (capability.DiscoveryResult, error) {
	return capability.DiscoveryResult{}, errOffline
}

func (offlineInsurance) Eligibility(context.Context, capability.EligibilityRequest) (capability.EligibilityResult, error) {
	return capability.EligibilityResult{}, errOffline
}

type discardSink struct{}

func (discardSink) Write(context.Context, *session.Record) error { return nil }

type stubQueue struct{ connected bool }

func (q stubQueue) Publish(context.Context, string, []byte) error { return nil }
func (q stubQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q stubQueue) Drain() error      { return nil }
func (q stubQueue) Close() error      { return nil }
func (q stubQueue) IsConnected() bool { return q.connected }

func newTestRouter(t *testing.T) (chi.Router, *cfhttp.Handlers) {
	t.Helper()
	cfg := config.Defaults()
	store := service.NewTaskStore(memkv.New())
	t.Cleanup(func() { _ = store.Close() })
	machine := service.NewTaskMachine(store)
	gw := service.NewGateway(stubExtractor{}, offlineTriage{}, offlineInsurance{}, cfg.Gateway, cfg.Breaker, nil)
	rec := service.NewRecorder(discardSink{}, "discard", nil)
	orch := service.NewOrchestrator(gw, machine, rec, service.NewOrchestratorConfig(cfg.Orchestrator, cfg.Triage), nil)

	h := &cfhttp.Handlers{
		Protocol: service.NewProtocolService(store, machine, orch),
		Card:     a2a.BuildAgentCard("http://careline.test", "1.0.0"),
		Version:  "1.0.0",
		Breakers: gw.BreakerStates,
	}
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, h)
	return r, h
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type statusBody struct {
	State string `json:"state"`
}

type taskBody struct {
	ID        string            `json:"id"`
	ContextID string            `json:"contextId"`
	Kind      string            `json:"kind"`
	Status    statusBody        `json:"status"`
	History   []json.RawMessage `json:"history"`
	Artifacts []json.RawMessage `json:"artifacts"`
	Reply     string            `json:"reply"`
	Done      bool              `json:"done"`
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) taskBody {
	t.Helper()
	var tb taskBody
	if err := json.NewDecoder(w.Body).Decode(&tb); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return tb
}

func TestAgentCard(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/.well-known/agent-card.json", "/.well-known/agent.json"} {
		w := do(t, r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		var card a2a.AgentCard
		if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
			t.Fatal(err)
		}
		if card.URL != "http://careline.test/a2a" || len(card.Skills) != 1 {
			t.Errorf("%s: card = %+v", path, card)
		}
	}
}

func TestHealth(t *testing.T) {
	r, h := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", "")
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] != "1.0.0" {
		t.Errorf("health = %v", body)
	}
	if _, ok := body["breakers"].(map[string]any); !ok {
		t.Errorf("breakers missing: %v", body)
	}

	h.Queue = stubQueue{connected: false}
	w = do(t, r, http.MethodGet, "/health", "")
	body = nil
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "degraded" || body["nats"] != "disconnected" {
		t.Errorf("health = %v", body)
	}
}

func TestSendTaskCreatesThenContinues(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/a2a/tasks", `{"text":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	raw := w.Body.String()
	if !strings.Contains(raw, `"artifacts":[]`) {
		t.Errorf("artifacts not an empty list: %s", raw)
	}
	var first taskBody
	if err := json.Unmarshal([]byte(raw), &first); err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.ContextID == "" || first.Kind != "task" {
		t.Errorf("task = %+v", first)
	}
	if first.Status.State != "input-required" || first.Reply != "How can I help you today?" || first.Done {
		t.Errorf("first turn = %+v", first)
	}

	w = do(t, r, http.MethodPost, "/a2a/tasks", `{"taskId":"`+first.ID+`","text":"still there?","historyLength":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	second := decodeTask(t, w)
	if second.ID != first.ID || len(second.History) != 2 {
		t.Errorf("second turn = %s with %d entries", second.ID, len(second.History))
	}

	w = do(t, r, http.MethodGet, "/a2a/tasks/"+first.ID, "")
	if got := decodeTask(t, w); len(got.History) != 4 {
		t.Errorf("history = %d entries, want 4", len(got.History))
	}
}

func TestSendTaskErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"no message", `{}`, http.StatusBadRequest},
		{"blank message", `{"message":{"role":"user","parts":[{"kind":"text","text":"  "}]}}`, http.StatusBadRequest},
		{"negative history", `{"text":"hi","historyLength":-1}`, http.StatusBadRequest},
		{"unknown task", `{"taskId":"missing","text":"hi"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/a2a/tasks", tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestGetTaskErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(t, r, http.MethodGet, "/a2a/tasks/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing task: status = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/a2a/tasks/x?historyLength=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad historyLength: status = %d", w.Code)
	}
}

func TestCancelTask(t *testing.T) {
	r, _ := newTestRouter(t)
	created := decodeTask(t, do(t, r, http.MethodPost, "/a2a/tasks", `{"text":"hello"}`))

	w := do(t, r, http.MethodPost, "/a2a/tasks/"+created.ID+"/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeTask(t, w); got.Status.State != "canceled" {
		t.Errorf("state = %s", got.Status.State)
	}

	if w := do(t, r, http.MethodPost, "/a2a/tasks/"+created.ID+"/cancel", ""); w.Code != http.StatusConflict {
		t.Errorf("second cancel: status = %d, want 409", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/a2a/tasks", `{"taskId":"`+created.ID+`","text":"hi"}`); w.Code != http.StatusConflict {
		t.Errorf("continue after cancel: status = %d, want 409", w.Code)
	}
}

func TestReportInputFailure(t *testing.T) {
	r, _ := newTestRouter(t)
	created := decodeTask(t, do(t, r, http.MethodPost, "/a2a/tasks", `{"text":"hello"}`))

	w := do(t, r, http.MethodPost, "/a2a/tasks/"+created.ID+"/input-failure", `{"kind":"timeout"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeTask(t, w); got.Reply != "I didn't hear anything. Please try speaking again." {
		t.Errorf("reply = %q", got.Reply)
	}

	w = do(t, r, http.MethodPost, "/a2a/tasks/"+created.ID+"/input-failure", `{"kind":"static"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d", w.Code)
	}
}

func rpc(t *testing.T, r http.Handler, body string) a2a.Response {
	t.Helper()
	w := do(t, r, http.MethodPost, "/a2a", body)
	if w.Code != http.StatusOK {
		t.Fatalf("http status = %d", w.Code)
	}
	var resp a2a.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestJSONRPCMessageSend(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := rpc(t, r, `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","kind":"message","messageId":"m1","parts":[{"kind":"text","text":"hello"}]}}}`)
	if resp.Error != nil {
		t.Fatalf("error = %+v", resp.Error)
	}
	var first taskBody
	if err := json.Unmarshal(resp.Result, &first); err != nil {
		t.Fatal(err)
	}
	if first.Status.State != "input-required" || first.Reply == "" {
		t.Errorf("result = %+v", first)
	}

	resp = rpc(t, r, `{"jsonrpc":"2.0","id":2,"method":"message/send","params":{"configuration":{"blocking":true,"historyLength":1},"message":{"role":"user","kind":"message","messageId":"m2","taskId":"`+first.ID+`","contextId":"`+first.ContextID+`","parts":[{"kind":"text","text":"again"}]}}}`)
	if resp.Error != nil {
		t.Fatalf("error = %+v", resp.Error)
	}
	var second taskBody
	if err := json.Unmarshal(resp.Result, &second); err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || len(second.History) != 1 {
		t.Errorf("second = %s with %d entries", second.ID, len(second.History))
	}

	resp = rpc(t, r, `{"jsonrpc":"2.0","id":3,"method":"tasks/get","params":{"id":"`+first.ID+`","historyLength":3}}`)
	var got taskBody
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.History) != 3 {
		t.Errorf("tasks/get history = %d", len(got.History))
	}

	resp = rpc(t, r, `{"jsonrpc":"2.0","id":4,"method":"tasks/cancel","params":{"id":"`+first.ID+`"}}`)
	if resp.Error != nil {
		t.Fatalf("cancel error = %+v", resp.Error)
	}
	resp = rpc(t, r, `{"jsonrpc":"2.0","id":5,"method":"tasks/cancel","params":{"id":"`+first.ID+`"}}`)
	if resp.Error == nil || resp.Error.Code != a2a.CodeTaskNotCancelable {
		t.Errorf("second cancel = %+v, want %d", resp.Error, a2a.CodeTaskNotCancelable)
	}
}

func TestJSONRPCErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, a2a.CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"tasks/get"}`, a2a.CodeInvalidRequest},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, a2a.CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"tasks/resubscribe"}`, a2a.CodeMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"tasks/get"}`, a2a.CodeInvalidParams},
		{"empty text", `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","parts":[]}}}`, a2a.CodeInvalidParams},
		{"negative history", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"x","historyLength":-2}}`, a2a.CodeInvalidParams},
		{"unknown task", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"missing"}}`, a2a.CodeTaskNotFound},
		{"continue unknown task", `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","taskId":"missing","parts":[{"kind":"text","text":"hi"}]}}}`, a2a.CodeTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rpc(t, r, tt.body)
			if resp.Error == nil {
				t.Fatalf("no error, result = %s", resp.Result)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("code = %d, want %d (%s)", resp.Error.Code, tt.code, resp.Error.Message)
			}
			if resp.JSONRPC != a2a.JSONRPCVersion {
				t.Errorf("jsonrpc = %q", resp.JSONRPC)
			}
		})
	}
}
