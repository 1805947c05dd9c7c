// Package tools implements the MCP tools that front the Jira and Confluence
// clients. Every call builds its clients from the configuration current at
// that moment.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golovatskygroup/mcp-atlas/internal/atlassian"
	"github.com/golovatskygroup/mcp-atlas/internal/metrics"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// ConfigSource resolves per-service session configuration.
// *config.Loader satisfies it.
type ConfigSource interface {
	Jira() (atlassian.Config, error)
	Confluence() (atlassian.Config, error)
}

// Handler dispatches tool calls.
type Handler struct {
	registry  *registry.Registry
	config    ConfigSource
	schemas   argSchemas
	metrics   *metrics.Metrics
	logger    *slog.Logger
	userAgent string
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics instruments outgoing requests and search pages.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(h *Handler) { h.userAgent = ua }
}

// NewHandler creates a handler and registers its tools in reg. It panics if
// a built-in input schema does not compile.
func NewHandler(reg *registry.Registry, cfg ConfigSource, opts ...Option) *Handler {
	builtin := BuiltinTools()
	schemas, err := compileArgSchemas(builtin)
	if err != nil {
		panic(err)
	}
	h := &Handler{
		registry: reg,
		config:   cfg,
		schemas:  schemas,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	reg.LoadTools(builtin)
	return h
}

// Tools returns the tools exposed to clients.
func (h *Handler) Tools() []mcp.Tool {
	return h.registry.ListTools()
}

// Handle validates args against the tool's schema and runs it. Tool failures
// are reported in the result with IsError set; the returned error is
// reserved for failures of the handler itself.
func (h *Handler) Handle(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	if _, ok := h.registry.GetTool(name); !ok {
		return errorResult(h.unknownToolMessage(name)), nil
	}

	decoded, err := decodeArgs(args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if err := h.schemas.check(name, decoded); err != nil {
		return errorResult(err.Error()), nil
	}
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	switch name {
	case "jira_search":
		return h.jiraSearch(ctx, args)
	case "jira_get_issue":
		return h.jiraGetIssue(ctx, args)
	case "confluence_search":
		return h.confluenceSearch(ctx, args)
	case "confluence_get_page":
		return h.confluenceGetPage(ctx, args)
	default:
		return nil, fmt.Errorf("tool %q is registered but has no implementation", name)
	}
}

func (h *Handler) unknownToolMessage(name string) string {
	msg := fmt.Sprintf("unknown tool %q", name)
	if s := h.registry.Suggest(name, 3); len(s) > 0 {
		msg += ". Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return msg
}

// newSession opens a session for one call, instrumented under service.
func (h *Handler) newSession(service string, cfg atlassian.Config) (*atlassian.Session, error) {
	opts := []atlassian.Option{
		atlassian.WithRoundTripper(func(rt http.RoundTripper) http.RoundTripper {
			return h.metrics.InstrumentTransport(service, rt)
		}),
	}
	if h.userAgent != "" {
		opts = append(opts, atlassian.WithUserAgent(h.userAgent))
	}
	s, err := atlassian.NewSession(cfg, opts...)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("session opened", "service", service, "base_url", s.BaseURL(), "timeout", s.Timeout())
	return s, nil
}

// failure turns a client error into a tool error, with a hint when one applies.
func (h *Handler) failure(tool, service string, err error) *mcp.CallToolResult {
	h.logger.Warn("tool call failed", "tool", tool, "err", err)
	msg := err.Error()
	if hint := atlassian.Hint(service, err); hint != "" {
		msg += "\n\nHint: " + hint
	}
	return errorResult(msg)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: "Error: " + msg}}, IsError: true}
}

// jsonResult renders v as indented JSON without HTML escaping, so markup in
// issue and page bodies stays readable.
func jsonResult(v any) *mcp.CallToolResult {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errorResult(err.Error())
	}
	return textResult(strings.TrimRight(buf.String(), "\n"))
}
