// Package a2a holds the A2A wire types shared by the inbound JSON-RPC
// transport and the outbound triage client.
package a2a

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/careline/internal/domain/task"
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// JSON-RPC methods.
const (
	MethodMessageSend = "message/send"
	MethodTasksGet    = "tasks/get"
	MethodTasksCancel = "tasks/cancel"
)

// JSON-RPC error codes, including the A2A task codes.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeTaskNotFound      = -32001
	CodeTaskNotCancelable = -32002
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// SendConfiguration tunes a message/send call.
type SendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	Blocking            bool     `json:"blocking"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
}

// MessageSendParams are the params of message/send.
type MessageSendParams struct {
	Message       task.Message       `json:"message"`
	Configuration *SendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"` //nolint:gosec // A2A protocol requires flexible metadata
}

// TaskQueryParams are the params of tasks/get.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// TaskIDParams are the params of tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// RemoteStatus is the status block of a task returned by a remote agent.
type RemoteStatus struct {
	State   task.State    `json:"state"`
	Message *task.Message `json:"message,omitempty"`
}

// RemoteTask is the subset of a remote agent's task this service reads.
// Timestamps are ignored because peers disagree on their format.
type RemoteTask struct {
	ID        string          `json:"id"`
	ContextID string          `json:"contextId"`
	Kind      string          `json:"kind"`
	Status    RemoteStatus    `json:"status"`
	Artifacts []task.Artifact `json:"artifacts,omitempty"`
}
