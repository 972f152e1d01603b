package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/port/a2a"
	"github.com/Strob0t/careline/internal/service"
)

// JSONRPC handles POST /a2a. Protocol errors are reported in the JSON-RPC
// envelope, so the HTTP status is always 200 once the body was read.
func (h *Handlers) JSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, nil, nil, &a2a.Error{Code: a2a.CodeParseError, Message: "Parse error"})
		return
	}
	if req.JSONRPC != a2a.JSONRPCVersion || req.Method == "" {
		writeRPC(w, req.ID, nil, &a2a.Error{Code: a2a.CodeInvalidRequest, Message: "Invalid request"})
		return
	}

	result, rpcErr := h.dispatch(r.Context(), &req)
	writeRPC(w, req.ID, result, rpcErr)
}

func (h *Handlers) dispatch(ctx context.Context, req *a2a.Request) (any, *a2a.Error) {
	switch req.Method {
	case a2a.MethodMessageSend:
		var p a2a.MessageSendParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalidParams("invalid message/send params")
		}
		limit := 0
		if p.Configuration != nil && p.Configuration.HistoryLength != nil {
			if limit = *p.Configuration.HistoryLength; limit < 0 {
				return nil, invalidParams("historyLength must not be negative")
			}
		}
		t, err := h.Protocol.CreateOrContinue(ctx, service.SendRequest{
			TaskID:    p.Message.TaskID,
			ContextID: p.Message.ContextID,
			Message:   p.Message,
		})
		if err != nil {
			return nil, rpcError(ctx, err)
		}
		return newTaskResult(t.WithHistoryLimit(limit)), nil

	case a2a.MethodTasksGet:
		var p a2a.TaskQueryParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, invalidParams("tasks/get requires an id")
		}
		limit := 0
		if p.HistoryLength != nil {
			limit = *p.HistoryLength
		}
		t, err := h.Protocol.Get(ctx, p.ID, limit)
		if err != nil {
			return nil, rpcError(ctx, err)
		}
		return newTaskResult(t), nil

	case a2a.MethodTasksCancel:
		var p a2a.TaskIDParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			return nil, invalidParams("tasks/cancel requires an id")
		}
		t, err := h.Protocol.Cancel(ctx, p.ID)
		if err != nil {
			return nil, rpcError(ctx, err)
		}
		return newTaskResult(t), nil

	default:
		return nil, &a2a.Error{Code: a2a.CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

func invalidParams(msg string) *a2a.Error {
	return &a2a.Error{Code: a2a.CodeInvalidParams, Message: msg}
}

// rpcError maps the protocol errors onto A2A error codes.
func rpcError(ctx context.Context, err error) *a2a.Error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return invalidParams(strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	case errors.Is(err, domain.ErrTaskNotFound):
		return &a2a.Error{Code: a2a.CodeTaskNotFound, Message: "Task not found"}
	case errors.Is(err, domain.ErrTaskTerminal):
		return &a2a.Error{Code: a2a.CodeTaskNotCancelable, Message: "Task is in a terminal state"}
	default:
		slog.ErrorContext(ctx, "jsonrpc call failed", "error", err)
		return &a2a.Error{Code: a2a.CodeInternalError, Message: "Internal error"}
	}
}

func writeRPC(w http.ResponseWriter, id, result any, rpcErr *a2a.Error) {
	resp := a2a.Response{JSONRPC: a2a.JSONRPCVersion, ID: id, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			slog.Error("encode jsonrpc result", "error", err)
			resp.Error = &a2a.Error{Code: a2a.CodeInternalError, Message: "Internal error"}
		} else {
			resp.Result = raw
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
