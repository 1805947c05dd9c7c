package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	schema := json.RawMessage(`{"type":"object"}`)
	r.LoadTools([]mcp.Tool{
		{Name: "jira_search", Description: "Search issues", InputSchema: schema},
		{Name: "jira_get_issue", Description: "Get issue", InputSchema: schema},
		{Name: "confluence_search", Description: "Search content", InputSchema: schema},
		{Name: "confluence_get_page", Description: "Get page", InputSchema: schema},
	})
	return r
}

func TestListToolsKeepsRegistrationOrder(t *testing.T) {
	r := newTestRegistry()
	r.LoadTools([]mcp.Tool{{Name: "jira_search", Description: "replaced"}})

	var names []string
	for _, tool := range r.ListTools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"jira_search", "jira_get_issue", "confluence_search", "confluence_get_page"}, names)
	assert.Equal(t, 4, r.ToolCount())

	tool, ok := r.GetTool("jira_search")
	require.True(t, ok)
	assert.Equal(t, "replaced", tool.Description)

	_, ok = r.GetTool("nope")
	assert.False(t, ok)
}

func TestCategory(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, "jira", r.Category("jira_get_issue"))
	assert.Equal(t, "confluence", r.Category("confluence_search"))
	assert.Equal(t, "other", r.Category("grafana"))
	assert.Len(t, r.ListCategories(), 2)
}

func TestSuggest(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "missing letter", query: "jira_serch", want: []string{"jira_search"}},
		{name: "case folded prefix", query: "JIRA", want: []string{"jira_search", "jira_get_issue"}},
		{name: "extra letter", query: "confluence_get_pages", want: []string{"confluence_get_page"}},
		{name: "unrelated", query: "zzzzzzzz", want: nil},
		{name: "blank", query: "  ", want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Suggest(tc.query, 3))
		})
	}
}

func TestSuggestLimit(t *testing.T) {
	r := newTestRegistry()
	assert.Len(t, r.Suggest("e", 2), 2)
	assert.Len(t, r.Suggest("e", 0), 3)
}
