package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/careline/internal/adapter/memkv"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/port/capability"
	"github.com/Strob0t/careline/internal/service"
)

// --- Extraction fake ---

type extractStep struct {
	out   capability.Extraction
	err   error
	panic bool
}

// fakeExtractor replays scripted steps in order. When the script runs out it
// answers with a plain reply and no fields.
type fakeExtractor struct {
	mu       sync.Mutex
	steps    []extractStep
	calls    int
	requests []capability.ExtractionRequest
	block    chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, req capability.ExtractionRequest) (capability.Extraction, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return capability.Extraction{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if len(f.steps) == 0 {
		return capability.Extraction{Reply: "What else can I help with?"}, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	if s.panic {
		panic("extractor exploded")
	}
	return s.out, s.err
}

func (f *fakeExtractor) push(steps ...extractStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, steps...)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func reply(text string, fields map[string]any) extractStep {
	return extractStep{out: capability.Extraction{Reply: text, Fields: fields}}
}

// --- Triage fake ---

type fakeTriage struct {
	mu          sync.Mutex
	startFn     func(capability.TriageStart) (capability.TriageTurn, error)
	continueFn  func(ctx context.Context, answer string) (capability.TriageTurn, error)
	startCalls  int
	continueLog []string
}

func (f *fakeTriage) Start(_ context.Context, req capability.TriageStart) (capability.TriageTurn, error) {
	f.mu.Lock()
	f.startCalls++
	fn := f.startFn
	f.mu.Unlock()
	if fn == nil {
		return capability.TriageTurn{}, errors.New("triage not scripted")
	}
	return fn(req)
}

func (f *fakeTriage) Continue(ctx context.Context, _ capability.TriageRef, answer string) (capability.TriageTurn, error) {
	f.mu.Lock()
	f.continueLog = append(f.continueLog, answer)
	fn := f.continueFn
	f.mu.Unlock()
	if fn == nil {
		return capability.TriageTurn{}, errors.New("triage not scripted")
	}
	return fn(ctx, answer)
}

func (f *fakeTriage) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func (f *fakeTriage) continues() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.continueLog)
}

func triageQuestion(q string) func(capability.TriageStart) (capability.TriageTurn, error) {
	return func(capability.TriageStart) (capability.TriageTurn, error) {
		return capability.TriageTurn{
			Ref:      capability.TriageRef{TaskID: "tri-1", ContextID: "tri-ctx"},
			State:    capability.TriageInProgress,
			Question: q,
		}, nil
	}
}

// --- Insurance fake ---

type fakeInsurance struct {
	mu               sync.Mutex
	discovery        capability.DiscoveryResult
	discoveryErr     error
	eligibility      capability.EligibilityResult
	eligibilityErr   error
	discoveryCalls   int
	eligibilityCalls int
	lastDiscovery    capability.DiscoveryRequest
}

func (f *fakeInsurance) Discovery(_ context.Context, req capability.DiscoveryRequest) (capability.DiscoveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoveryCalls++
	f.lastDiscovery = req
	return f.discovery, f.discoveryErr
}

func (f *fakeInsurance) Eligibility(_ context.Context, _ capability.EligibilityRequest) (capability.EligibilityResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eligibilityCalls++
	return f.eligibility, f.eligibilityErr
}

func (f *fakeInsurance) counts() (discovery, eligibility int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoveryCalls, f.eligibilityCalls
}

// --- Recorder sink fake ---

type memSink struct {
	mu      sync.Mutex
	records []*session.Record
	err     error
}

func (s *memSink) Write(_ context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memSink) last() *session.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}

// --- Task store backend ---

// flakyBackend wraps the in-memory backend and fails the next Put on demand.
type flakyBackend struct {
	*memkv.Store
	failPut atomic.Bool
}

func (b *flakyBackend) Put(ctx context.Context, key string, value []byte) error {
	if b.failPut.CompareAndSwap(true, false) {
		return errors.New("kv unavailable")
	}
	return b.Store.Put(ctx, key, value)
}

// --- Harness ---

type harness struct {
	backend *flakyBackend
	store   *service.TaskStore
	machine *service.TaskMachine
	gw      *service.Gateway
	orch    *service.Orchestrator
	svc     *service.ProtocolService
	ex      *fakeExtractor
	tr      *fakeTriage
	ins     *fakeInsurance
	sink    *memSink
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Defaults()
	cfg.Gateway.ExtractionTimeout = time.Second
	cfg.Gateway.TriageTimeout = 50 * time.Millisecond
	cfg.Gateway.InsuranceTimeout = time.Second
	cfg.Breaker.MaxFailures = 100
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{
		ex:   &fakeExtractor{},
		tr:   &fakeTriage{},
		ins:  &fakeInsurance{discovery: capability.DiscoveryResult{Payer: "Aetna", MemberID: "M123"}},
		sink: &memSink{},
	}
	h.backend = &flakyBackend{Store: memkv.New()}
	h.store = service.NewTaskStore(h.backend)
	t.Cleanup(func() { _ = h.store.Close() })
	h.machine = service.NewTaskMachine(h.store)
	h.gw = service.NewGateway(h.ex, h.tr, h.ins, cfg.Gateway, cfg.Breaker, nil)
	rec := service.NewRecorder(h.sink, "memory", nil)
	h.orch = service.NewOrchestrator(h.gw, h.machine, rec, service.NewOrchestratorConfig(cfg.Orchestrator, cfg.Triage), nil)
	h.svc = service.NewProtocolService(h.store, h.machine, h.orch)
	return h
}

func userMsg(text string) task.Message {
	return task.Message{Role: task.RoleUser, Parts: task.Parts{task.TextPart{Text: text}}}
}

// send runs one turn and fails the test on error.
func (h *harness) send(t *testing.T, taskID, text string) *task.Task {
	t.Helper()
	got, err := h.svc.CreateOrContinue(context.Background(), service.SendRequest{TaskID: taskID, Message: userMsg(text)})
	if err != nil {
		t.Fatalf("CreateOrContinue(%q): %v", text, err)
	}
	return got
}

func (h *harness) session(t *testing.T, taskID string) *session.Session {
	t.Helper()
	_, sess, err := h.store.Get(context.Background(), taskID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return sess
}

func agentMessages(tk *task.Task) []string {
	var out []string
	for i := range tk.History {
		if tk.History[i].Role == task.RoleAgent {
			out = append(out, tk.History[i].Text())
		}
	}
	return out
}

func lastReply(tk *task.Task) string {
	return tk.LatestAgentMessage().Text()
}

func fieldsOf(kv ...string) map[string]any {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("fieldsOf: odd argument count %d", len(kv)))
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

var errBackendDown = fmt.Errorf("%w: connection refused", domain.ErrCapabilityUnavailable)
