// Package jira is a read-only client for the Jira Server/Data Center REST API v2.
package jira

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/golovatskygroup/mcp-atlas/internal/atlassian"
)

const (
	apiBase    = "/rest/api/2"
	searchPath = apiBase + "/search"
	issuePath  = apiBase + "/issue/"
)

const (
	DefaultBatchSize = 100
	MaxBatchSize     = 1000
)

// Getter is the authenticated GET capability the client is built on.
// *atlassian.Session satisfies it.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// PageObserver is notified once per fetched search page.
type PageObserver interface {
	ObservePage(service string)
}

// Client issues Jira requests through a Getter.
type Client struct {
	getter   Getter
	logger   *slog.Logger
	observer PageObserver
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for per-page debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPageObserver registers a hook invoked after each search page.
func WithPageObserver(o PageObserver) Option {
	return func(c *Client) { c.observer = o }
}

// New returns a Client that sends requests through g.
func New(g Getter, opts ...Option) *Client {
	c := &Client{getter: g, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetIssue fetches one issue by key or id. A nil fields or expand slice
// omits the parameter.
func (c *Client) GetIssue(ctx context.Context, key string, fields, expand []string) (json.RawMessage, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &atlassian.ValidationError{Field: "key", Reason: "must not be empty"}
	}

	q := url.Values{}
	setList(q, "fields", fields)
	setList(q, "expand", expand)

	var issue json.RawMessage
	if err := c.getter.Get(ctx, issuePath+url.PathEscape(key), q, &issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func setList(q url.Values, name string, values []string) {
	if values != nil {
		q.Set(name, strings.Join(values, ","))
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
