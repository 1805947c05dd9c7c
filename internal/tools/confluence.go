package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/golovatskygroup/mcp-atlas/internal/confluence"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

const (
	serviceConfluence = "confluence"
	displayConfluence = "Confluence"
)

type confluenceSearchInput struct {
	CQL   string `json:"cql"`
	Limit int    `json:"limit,omitempty"`
}

type confluenceGetPageInput struct {
	PageID      string `json:"page_id"`
	Expand      string `json:"expand,omitempty"`
	IncludeText bool   `json:"include_text,omitempty"`
	MaxChars    int    `json:"max_chars,omitempty"`
}

type pageWithText struct {
	Page      json.RawMessage `json:"page"`
	Text      string          `json:"text"`
	Truncated bool            `json:"truncated,omitempty"`
}

func (h *Handler) confluenceClient() (*confluence.Client, func(), error) {
	cfg, err := h.config.Confluence()
	if err != nil {
		return nil, nil, err
	}
	s, err := h.newSession(serviceConfluence, cfg)
	if err != nil {
		return nil, nil, err
	}
	return confluence.New(s), s.CloseIdleConnections, nil
}

func (h *Handler) confluenceSearch(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in confluenceSearchInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}

	c, done, err := h.confluenceClient()
	if err != nil {
		return h.failure("confluence_search", displayConfluence, err), nil
	}
	defer done()

	results, err := c.Search(ctx, in.CQL, in.Limit)
	if err != nil {
		return h.failure("confluence_search", displayConfluence, err), nil
	}
	return jsonResult(results), nil
}

func (h *Handler) confluenceGetPage(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in confluenceGetPageInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}

	c, done, err := h.confluenceClient()
	if err != nil {
		return h.failure("confluence_get_page", displayConfluence, err), nil
	}
	defer done()

	page, err := c.GetPage(ctx, in.PageID, in.Expand)
	if err != nil {
		return h.failure("confluence_get_page", displayConfluence, err), nil
	}
	if !in.IncludeText {
		return jsonResult(page), nil
	}

	out := pageWithText{Page: page}
	if markup, ok := pageBody(page, in.Expand); ok {
		text, truncated, err := confluence.PlainText(markup, confluence.TextOptions{MaxChars: in.MaxChars, Links: true})
		if err != nil {
			return errorResult(err.Error()), nil
		}
		out.Text, out.Truncated = text, truncated
	}
	return jsonResult(out), nil
}

// pageBody picks the body representation that was asked for, preferring the
// rendered view when both were expanded.
func pageBody(page json.RawMessage, expand string) (string, bool) {
	order := []string{"storage", "view"}
	if strings.Contains(expand, confluence.ViewExpand) {
		order = []string{"view", "storage"}
	}
	for _, repr := range order {
		if v, ok := confluence.BodyValue(page, repr); ok {
			return v, true
		}
	}
	return "", false
}
