// Package confluence is a read-only client for the Confluence REST API v1.
package confluence

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/golovatskygroup/mcp-atlas/internal/atlassian"
)

const (
	contentPath = "/rest/api/content/"
	searchPath  = "/rest/api/content/search"

	// searchExpand makes search results carry the space and the rendered body.
	searchExpand = "space,body.view"
)

const (
	DefaultSearchLimit = 25
	// DefaultExpand returns the raw storage-format markup.
	DefaultExpand = "body.storage"
	// ViewExpand returns the rendered HTML.
	ViewExpand = "body.view"
)

// Getter is the authenticated GET capability the client is built on.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Client issues Confluence requests through a Getter.
type Client struct {
	getter Getter
}

func New(g Getter) *Client {
	return &Client{getter: g}
}

// Search runs a CQL query and returns at most limit content items, each with
// its space and rendered view. A limit of 0 uses DefaultSearchLimit.
func (c *Client) Search(ctx context.Context, cql string, limit int) ([]json.RawMessage, error) {
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 0 {
		return nil, &atlassian.ValidationError{Field: "limit", Reason: "must not be negative"}
	}

	q := url.Values{}
	q.Set("cql", cql)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("expand", searchExpand)

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := c.getter.Get(ctx, searchPath, q, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []json.RawMessage{}
	}
	return resp.Results, nil
}

// GetPage fetches one content item by id. expand selects the body
// representation (DefaultExpand when empty). The item is returned verbatim.
func (c *Client) GetPage(ctx context.Context, id string, expand string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &atlassian.ValidationError{Field: "page_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(expand) == "" {
		expand = DefaultExpand
	}

	q := url.Values{}
	q.Set("expand", expand)

	var page json.RawMessage
	if err := c.getter.Get(ctx, contentPath+url.PathEscape(id), q, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// BodyValue extracts body.<representation>.value from a content item.
func BodyValue(page json.RawMessage, representation string) (string, bool) {
	var doc struct {
		Body map[string]struct {
			Value *string `json:"value"`
		} `json:"body"`
	}
	if err := json.Unmarshal(page, &doc); err != nil {
		return "", false
	}
	b, ok := doc.Body[representation]
	if !ok || b.Value == nil {
		return "", false
	}
	return *b.Value, true
}
