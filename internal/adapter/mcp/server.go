// Package mcp exposes the task protocol as Model Context Protocol tools over
// the streamable HTTP transport.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/middleware"
	"github.com/Strob0t/careline/internal/port/a2a"
	"github.com/Strob0t/careline/internal/service"
)

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string // empty disables auth
}

// TaskService is the subset of the protocol service the tools call.
type TaskService interface {
	CreateOrContinue(ctx context.Context, req service.SendRequest) (*task.Task, error)
	Get(ctx context.Context, id string, historyLimit int) (*task.Task, error)
	Cancel(ctx context.Context, id string) (*task.Task, error)
}

// ServerDeps holds the dependencies of the tool and resource handlers.
type ServerDeps struct {
	Tasks TaskService
	Card  a2a.AgentCard
}

// Server wraps an mcp-go server with the Careline tools registered.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates an MCP server and registers its tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP endpoint, mounted at /mcp. It takes
// the MCP API key the same way the A2A routes take the shared key.
func (s *Server) Handler() http.Handler {
	return middleware.SharedKey(s.cfg.APIKey)(mcpserver.NewStreamableHTTPServer(s.mcpServer))
}
