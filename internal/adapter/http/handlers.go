package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/port/a2a"
	"github.com/Strob0t/careline/internal/port/messagequeue"
	"github.com/Strob0t/careline/internal/service"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	Protocol *service.ProtocolService
	Card     a2a.AgentCard
	Version  string
	Queue    messagequeue.Queue      // optional; reported by /health
	Breakers func() map[string]string // optional; reported by /health
}

// taskResult is the outward task: the full A2A task plus the latest agent
// reply and the done flag.
type taskResult struct {
	*task.Task
	Reply string `json:"reply"`
	Done  bool   `json:"done"`
}

func newTaskResult(t *task.Task) taskResult {
	v := service.View(t)
	c := *t
	c.Artifacts = v.Artifacts
	if c.History == nil {
		c.History = []task.Message{}
	}
	return taskResult{Task: &c, Reply: v.Reply, Done: v.Done}
}

type healthStatus struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	NATS     string            `json:"nats,omitempty"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := healthStatus{Status: "ok", Version: h.Version}
	if h.Queue != nil {
		status.NATS = "connected"
		if !h.Queue.IsConnected() {
			status.NATS = "disconnected"
			status.Status = "degraded"
		}
	}
	if h.Breakers != nil {
		status.Breakers = h.Breakers()
	}
	writeJSON(w, http.StatusOK, status)
}

// AgentCard handles GET /.well-known/agent-card.json.
func (h *Handlers) AgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Card)
}

// sendTaskRequest is the REST body of POST /a2a/tasks. Text is a shorthand
// for a message with a single text part.
type sendTaskRequest struct {
	TaskID        string        `json:"taskId"`
	ContextID     string        `json:"contextId"`
	Message       *task.Message `json:"message"`
	Text          string        `json:"text"`
	HistoryLength int           `json:"historyLength"`
}

// SendTask handles POST /a2a/tasks.
func (h *Handlers) SendTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[sendTaskRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if req.HistoryLength < 0 {
		writeError(w, http.StatusBadRequest, "historyLength must not be negative")
		return
	}
	msg := task.Message{Role: task.RoleUser, Kind: "message"}
	switch {
	case req.Message != nil:
		msg = *req.Message
	case strings.TrimSpace(req.Text) != "":
		msg.Parts = task.Parts{task.TextPart{Text: req.Text}}
		msg.MessageID = uuid.NewString()
	default:
		writeError(w, http.StatusBadRequest, "message or text is required")
		return
	}

	t, err := h.Protocol.CreateOrContinue(r.Context(), service.SendRequest{
		TaskID:    req.TaskID,
		ContextID: req.ContextID,
		Message:   msg,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if req.TaskID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, newTaskResult(t.WithHistoryLimit(req.HistoryLength)))
}

// GetTask handles GET /a2a/tasks/{id}?historyLength=N.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("historyLength"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "historyLength must be a non-negative integer")
			return
		}
		limit = n
	}
	t, err := h.Protocol.Get(r.Context(), urlParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResult(t))
}

// CancelTask handles POST /a2a/tasks/{id}/cancel.
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Protocol.Cancel(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResult(t))
}

type inputFailureRequest struct {
	Kind string `json:"kind"`
}

// ReportInputFailure handles POST /a2a/tasks/{id}/input-failure, used by
// remote voice shells whose speech input failed for a turn.
func (h *Handlers) ReportInputFailure(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[inputFailureRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	t, err := h.Protocol.ReportInputFailure(r.Context(), urlParam(r, "id"), req.Kind)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskResult(t))
}
