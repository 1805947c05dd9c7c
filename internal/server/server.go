package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/golovatskygroup/mcp-atlas/internal/metrics"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

const (
	serverName    = "mcp-atlas"
	serverVersion = "0.1.0"
)

// ToolHandler lists and runs tools. *tools.Handler satisfies it.
type ToolHandler interface {
	Tools() []mcp.Tool
	Handle(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error)
}

// Server is the MCP server loop over one transport.
type Server struct {
	transport *mcp.Transport
	registry  *registry.Registry
	handler   ToolHandler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	version   string
}

// Option configures a Server.
type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// New creates a server answering on transport. reg supplies the categories
// advertised in the initialize instructions.
func New(transport *mcp.Transport, reg *registry.Registry, handler ToolHandler, opts ...Option) *Server {
	s := &Server{
		transport: transport,
		registry:  reg,
		handler:   handler,
		logger:    slog.New(slog.DiscardHandler),
		version:   serverVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", serverName)
	return s
}

type incoming struct {
	req *mcp.Request
	err error
}

// Run processes requests one at a time until the input ends (nil), ctx is
// done (nil) or the input fails.
func (s *Server) Run(ctx context.Context) error {
	msgs := make(chan incoming)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			req, err := s.transport.ReadMessage()
			select {
			case msgs <- incoming{req: req, err: err}:
			case <-done:
				return
			}
			if err != nil && !errors.Is(err, mcp.ErrMalformed) {
				return
			}
		}
	}()

	s.logger.Info("serving", "tools", len(s.handler.Tools()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down", "reason", ctx.Err())
			return nil
		case in := <-msgs:
			if in.err != nil {
				switch {
				case errors.Is(in.err, io.EOF):
					s.logger.Info("input closed")
					return nil
				case errors.Is(in.err, mcp.ErrMalformed):
					s.logger.Warn("malformed message", "err", in.err)
					s.write(mcp.NewErrorResponse(nil, mcp.ParseError, in.err.Error()))
					continue
				default:
					return fmt.Errorf("read message: %w", in.err)
				}
			}
			if resp := s.handleRequest(ctx, in.req); resp != nil {
				s.write(resp)
			}
		}
	}
}

func (s *Server) write(resp *mcp.Response) {
	if err := s.transport.WriteResponse(resp); err != nil {
		s.logger.Error("write response", "err", err)
	}
}

func (s *Server) handleRequest(ctx context.Context, req *mcp.Request) *mcp.Response {
	if strings.HasPrefix(req.Method, "notifications/") || req.IsNotification() {
		s.logger.Debug("notification", "method", req.Method)
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "ping":
		return s.handlePing(req)
	default:
		return mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *mcp.Request) *mcp.Response {
	result := mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		},
		ServerInfo: mcp.ServerInfo{
			Name:    serverName,
			Version: s.version,
		},
		Instructions: s.buildInstructions(),
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleListTools(req *mcp.Request) *mcp.Response {
	result := mcp.ListToolsResult{
		Tools: s.handler.Tools(),
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}
	if params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: missing tool name")
	}

	log := s.logger.With("call_id", uuid.NewString(), "tool", params.Name, "category", s.registry.Category(params.Name))
	log.Debug("tool call", "args", string(params.Arguments))

	start := time.Now()
	result, err := s.handler.Handle(ctx, params.Name, params.Arguments)
	elapsed := time.Since(start)
	if err == nil && result == nil {
		err = fmt.Errorf("tool %s returned no result", params.Name)
	}
	s.metrics.ObserveToolCall(params.Name, err != nil || (result != nil && result.IsError), elapsed)

	if err != nil {
		log.Error("tool call failed", "err", err, "duration", elapsed)
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	log.Info("tool call done", "is_error", result.IsError, "duration", elapsed)

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handlePing(req *mcp.Request) *mcp.Response {
	resp, _ := mcp.NewResponse(req.ID, map[string]any{})
	return resp
}

func (s *Server) buildInstructions() string {
	var sb strings.Builder
	sb.WriteString("Jira and Confluence bridge: search Jira tickets and retrieve them, search Confluence content and retrieve pages.\n\n")
	sb.WriteString("Available categories:\n")

	for _, cat := range s.registry.ListCategories() {
		sb.WriteString(fmt.Sprintf("- %s: %s (%s)", cat.Name, cat.Description, strings.Join(cat.Tools, ", ")))
		if len(cat.Keywords) > 0 {
			sb.WriteString(" [keywords: " + strings.Join(cat.Keywords, ", ") + "]")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\nTotal available tools: %d\n", s.registry.ToolCount()))
	return sb.String()
}
