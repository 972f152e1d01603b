// Package triage implements the triage capability against a remote A2A
// agent using JSON-RPC message/send.
package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/port/a2a"
	"github.com/Strob0t/careline/internal/port/capability"
)

const (
	sharedKeyHeader  = "X-Shared-Key"
	defaultComplaint = "general health concern"
	maxResponseBytes = 1 << 20
)

// Client talks to the triage agent. It keeps no per-dialog state; the
// remote task and context ids travel in capability.TriageRef.
type Client struct {
	url       string
	sharedKey string
	http      *http.Client
}

// NewClient creates a triage client for the configured agent URL.
func NewClient(cfg config.Triage) *Client {
	return &Client{
		url:       cfg.URL,
		sharedKey: cfg.SharedKey,
		http:      &http.Client{Transport: cfotel.HTTPTransport(http.DefaultTransport)},
	}
}

// Start implements capability.Triage.
func (c *Client) Start(ctx context.Context, req capability.TriageStart) (capability.TriageTurn, error) {
	complaint := strings.TrimSpace(req.Complaint)
	if complaint == "" {
		complaint = defaultComplaint
	}
	text := fmt.Sprintf("I am %d years old, %s. %s", req.Age, req.Sex, complaint)
	return c.send(ctx, capability.TriageRef{}, text)
}

// Continue implements capability.Triage.
func (c *Client) Continue(ctx context.Context, ref capability.TriageRef, answer string) (capability.TriageTurn, error) {
	if ref.TaskID == "" {
		return capability.TriageTurn{}, fmt.Errorf("%w: continue without a triage task id", domain.ErrValidation)
	}
	return c.send(ctx, ref, answer)
}

func (c *Client) send(ctx context.Context, ref capability.TriageRef, text string) (capability.TriageTurn, error) {
	params := a2a.MessageSendParams{
		Message: task.Message{
			Role:      task.RoleUser,
			Parts:     task.Parts{task.TextPart{Text: text}},
			MessageID: uuid.NewString(),
			TaskID:    ref.TaskID,
			ContextID: ref.ContextID,
			Kind:      "message",
		},
		Configuration: &a2a.SendConfiguration{
			AcceptedOutputModes: []string{"text/plain", "application/json"},
			Blocking:            true,
		},
	}
	rt, err := c.call(ctx, a2a.MethodMessageSend, params)
	if err != nil {
		return capability.TriageTurn{}, err
	}
	turn := Interpret(rt)
	if turn.Ref.TaskID == "" {
		turn.Ref.TaskID = ref.TaskID
	}
	if turn.Ref.ContextID == "" {
		turn.Ref.ContextID = ref.ContextID
	}
	slog.DebugContext(ctx, "triage turn", "remote_task_id", turn.Ref.TaskID, "state", turn.State)
	return turn, nil
}

func (c *Client) call(ctx context.Context, method string, params any) (a2a.RemoteTask, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(a2a.Request{
		JSONRPC: a2a.JSONRPCVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.sharedKey != "" {
		httpReq.Header.Set(sharedKeyHeader, c.sharedKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("%w: triage %s: %w", domain.ErrCapabilityUnavailable, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("%w: read triage response: %w", domain.ErrCapabilityUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return a2a.RemoteTask{}, fmt.Errorf("%w: triage %s: status %d", domain.ErrCapabilityUnavailable, method, resp.StatusCode)
	}

	var rpc a2a.Response
	if err := json.Unmarshal(data, &rpc); err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("%w: decode triage response: %w", domain.ErrCapabilityUnavailable, err)
	}
	if rpc.Error != nil {
		return a2a.RemoteTask{}, fmt.Errorf("%w: triage %s: %w", domain.ErrCapabilityUnavailable, method, rpc.Error)
	}
	var rt a2a.RemoteTask
	if err := json.Unmarshal(rpc.Result, &rt); err != nil {
		return a2a.RemoteTask{}, fmt.Errorf("%w: decode triage task: %w", domain.ErrCapabilityUnavailable, err)
	}
	return rt, nil
}

// Interpret maps a remote task onto the triage sub-dialog states. A remote
// input-required state without a question cannot be answered and is
// treated as failed.
func Interpret(rt a2a.RemoteTask) capability.TriageTurn {
	turn := capability.TriageTurn{
		Ref: capability.TriageRef{TaskID: rt.ID, ContextID: rt.ContextID},
	}
	text := strings.TrimSpace(rt.Status.Message.Text())

	switch rt.Status.State {
	case task.StateInputRequired:
		if text == "" {
			turn.State = capability.TriageFailed
			return turn
		}
		turn.State = capability.TriageInProgress
		turn.Question = text
	case task.StateCompleted:
		turn.State = capability.TriagePresentResult
		turn.Summary = text
		turn.Assessment = assessmentFrom(rt.Artifacts)
	case task.StateCanceled:
		turn.State = capability.TriageCanceled
	default:
		turn.State = capability.TriageFailed
	}
	return turn
}

// assessmentFrom reads the first data part of the first artifact carrying one.
func assessmentFrom(artifacts []task.Artifact) *capability.Assessment {
	for i := range artifacts {
		data := artifacts[i].Parts.FirstData()
		if data == nil {
			continue
		}
		return &capability.Assessment{
			UrgencyLevel: stringValue(data, "urgency_level"),
			DoctorType:   stringValue(data, "doctor_type"),
			Notes:        stringValue(data, "notes"),
		}
	}
	return &capability.Assessment{}
}

func stringValue(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
