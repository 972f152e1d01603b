package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/service"
)

// Tool names.
const (
	ToolCreateOrContinue = "create_or_continue"
	ToolGetTask          = "get_task"
	ToolCancelTask       = "cancel_task"
)

// taskResult is the tool view of a task. History is only filled by get_task.
type taskResult struct {
	service.TaskView
	History []task.Message `json:"history,omitempty"`
}

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.createOrContinueTool(),
		s.getTaskTool(),
		s.cancelTaskTool(),
	)
}

func (s *Server) createOrContinueTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolCreateOrContinue,
		mcplib.WithDescription("Send one caller utterance to the intake assistant. Omit task_id to start a new conversation."),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("What the caller said"),
		),
		mcplib.WithString("task_id",
			mcplib.Description("Task to continue"),
		),
		mcplib.WithString("context_id",
			mcplib.Description("Conversation context to group tasks under"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCreateOrContinue,
	}
}

func (s *Server) getTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolGetTask,
		mcplib.WithDescription("Get the current state, latest reply and history of a task"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to look up"),
		),
		mcplib.WithNumber("history_length",
			mcplib.Description("Return at most this many recent history entries; 0 returns all"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetTask,
	}
}

func (s *Server) cancelTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolCancelTask,
		mcplib.WithDescription("Cancel a running task"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to cancel"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCancelTask,
	}
}

func (s *Server) handleCreateOrContinue(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	args := req.GetArguments()
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}
	taskID, _ := args["task_id"].(string)
	contextID, _ := args["context_id"].(string)

	t, err := s.deps.Tasks.CreateOrContinue(ctx, service.SendRequest{
		TaskID:    taskID,
		ContextID: contextID,
		Message: task.Message{
			Role:      task.RoleUser,
			Parts:     task.Parts{task.TextPart{Text: text}},
			MessageID: uuid.NewString(),
			Kind:      "message",
		},
	})
	if err != nil {
		return toolError(ctx, err), nil
	}
	return toolResultJSON(taskResult{TaskView: service.View(t)})
}

func (s *Server) handleGetTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	args := req.GetArguments()
	taskID, ok := args["task_id"].(string)
	if !ok || taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	limit := 0
	if n, ok := args["history_length"].(float64); ok {
		limit = int(n)
	}

	t, err := s.deps.Tasks.Get(ctx, taskID, limit)
	if err != nil {
		return toolError(ctx, err), nil
	}
	history := t.History
	if history == nil {
		history = []task.Message{}
	}
	return toolResultJSON(taskResult{TaskView: service.View(t), History: history})
}

func (s *Server) handleCancelTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	args := req.GetArguments()
	taskID, ok := args["task_id"].(string)
	if !ok || taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	t, err := s.deps.Tasks.Cancel(ctx, taskID)
	if err != nil {
		return toolError(ctx, err), nil
	}
	return toolResultJSON(taskResult{TaskView: service.View(t)})
}

// toolError reports protocol errors to the caller. Internal errors are
// logged and replaced by a generic message.
func toolError(ctx context.Context, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return mcplib.NewToolResultError(strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	case errors.Is(err, domain.ErrTaskNotFound):
		return mcplib.NewToolResultError("task not found")
	case errors.Is(err, domain.ErrTaskTerminal):
		return mcplib.NewToolResultError("task is in a terminal state")
	default:
		slog.ErrorContext(ctx, "mcp tool failed", "error", err)
		return mcplib.NewToolResultError("internal error")
	}
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
