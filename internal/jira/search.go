package jira

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/golovatskygroup/mcp-atlas/internal/atlassian"
)

// SearchOptions narrows a JQL search.
type SearchOptions struct {
	// Fields and Expand are sent comma-joined; nil omits the parameter.
	Fields []string
	Expand []string
	// BatchSize is the page size requested per call; 0 means DefaultBatchSize.
	BatchSize int
	// Limit caps the number of returned issues; 0 means no cap.
	Limit int
}

// searchPage is one response of /search. Pointers distinguish absent
// fields from zero values.
type searchPage struct {
	StartAt    *int              `json:"startAt"`
	MaxResults *int              `json:"maxResults"`
	Total      *int              `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

// cursor resolves the server-echoed paging values, falling back to what
// can be inferred from the batch when a field is missing.
func (p *searchPage) cursor(requestedOffset int) (startAt, granted, total int) {
	startAt = requestedOffset
	if p.StartAt != nil {
		startAt = *p.StartAt
	}
	granted = len(p.Issues)
	if p.MaxResults != nil && *p.MaxResults > 0 {
		granted = *p.MaxResults
	}
	total = startAt + len(p.Issues)
	if p.Total != nil {
		total = *p.Total
	}
	return startAt, granted, total
}

// Search runs jql and returns every matching issue in server order,
// truncated to opts.Limit when set. Pages are fetched one after another
// because each offset comes from the previous response. Any failure aborts
// the whole search; no partial result is returned.
func (c *Client) Search(ctx context.Context, jql string, opts SearchOptions) ([]json.RawMessage, error) {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize < 1 || batchSize > MaxBatchSize {
		return nil, &atlassian.ValidationError{Field: "batch_size", Reason: "must be 1..1000"}
	}
	if opts.Limit < 0 {
		return nil, &atlassian.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	limit := opts.Limit

	q := url.Values{}
	q.Set("jql", jql)
	setList(q, "fields", opts.Fields)
	setList(q, "expand", opts.Expand)

	offset := 0
	pageSize := batchSize
	if limit > 0 {
		pageSize = min(batchSize, limit)
	}

	issues := make([]json.RawMessage, 0, pageSize)
	for {
		q.Set("startAt", itoa(offset))
		q.Set("maxResults", itoa(pageSize))

		var page searchPage
		if err := c.getter.Get(ctx, searchPath, q, &page); err != nil {
			return nil, err
		}
		if c.observer != nil {
			c.observer.ObservePage("jira")
		}
		issues = append(issues, page.Issues...)

		if limit > 0 && len(issues) >= limit {
			return issues[:limit], nil
		}

		startAt, granted, total := page.cursor(offset)
		next := startAt + granted
		c.logger.Debug("jira search page",
			slog.Int("offset", offset),
			slog.Int("requested", pageSize),
			slog.Int("granted", granted),
			slog.Int("received", len(page.Issues)),
			slog.Int("total", total),
		)

		// A short or empty batch means the server has nothing more, whatever
		// its total says; a cursor that fails to advance would loop forever.
		if next >= total || len(page.Issues) == 0 || len(page.Issues) < granted || next <= offset {
			break
		}

		offset = next
		if limit > 0 {
			pageSize = min(batchSize, limit-len(issues))
		}
	}
	return issues, nil
}
