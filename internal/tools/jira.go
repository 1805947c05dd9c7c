package tools

import (
	"context"
	"encoding/json"

	"github.com/golovatskygroup/mcp-atlas/internal/jira"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

const (
	serviceJira      = "jira"
	displayJira      = "Jira"
	defaultJiraLimit = 50
)

type jiraSearchInput struct {
	JQL       string   `json:"jql"`
	Fields    []string `json:"fields,omitempty"`
	Expand    []string `json:"expand,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
	BatchSize int      `json:"batch_size,omitempty"`
}

type jiraGetIssueInput struct {
	Key    string   `json:"key"`
	Fields []string `json:"fields,omitempty"`
	Expand []string `json:"expand,omitempty"`
}

func (h *Handler) jiraClient() (*jira.Client, func(), error) {
	cfg, err := h.config.Jira()
	if err != nil {
		return nil, nil, err
	}
	s, err := h.newSession(serviceJira, cfg)
	if err != nil {
		return nil, nil, err
	}
	c := jira.New(s,
		jira.WithLogger(h.logger.With("service", serviceJira)),
		jira.WithPageObserver(h.metrics),
	)
	return c, s.CloseIdleConnections, nil
}

func (h *Handler) jiraSearch(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraSearchInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}
	limit := defaultJiraLimit
	if in.Limit != nil {
		limit = *in.Limit
	}

	c, done, err := h.jiraClient()
	if err != nil {
		return h.failure("jira_search", displayJira, err), nil
	}
	defer done()

	issues, err := c.Search(ctx, in.JQL, jira.SearchOptions{
		Fields:    in.Fields,
		Expand:    in.Expand,
		BatchSize: in.BatchSize,
		Limit:     limit,
	})
	if err != nil {
		return h.failure("jira_search", displayJira, err), nil
	}
	return jsonResult(issues), nil
}

func (h *Handler) jiraGetIssue(ctx context.Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	var in jiraGetIssueInput
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid input: " + err.Error()), nil
	}

	c, done, err := h.jiraClient()
	if err != nil {
		return h.failure("jira_get_issue", displayJira, err), nil
	}
	defer done()

	issue, err := c.GetIssue(ctx, in.Key, in.Fields, in.Expand)
	if err != nil {
		return h.failure("jira_get_issue", displayJira, err), nil
	}
	return jsonResult(issue), nil
}
