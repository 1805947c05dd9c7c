package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/mcp-atlas/internal/config"
	"github.com/golovatskygroup/mcp-atlas/internal/metrics"
	"github.com/golovatskygroup/mcp-atlas/internal/registry"
	"github.com/golovatskygroup/mcp-atlas/internal/testutil"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

func envLoader(kv map[string]string) *config.Loader {
	return &config.Loader{Lookup: func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}}
}

func newTestHandler(t *testing.T, env map[string]string, opts ...Option) *Handler {
	t.Helper()
	return NewHandler(registry.NewRegistry(), envLoader(env), opts...)
}

func jiraEnv(url string) map[string]string {
	return map[string]string{"JIRA_BASE_URL": url, "JIRA_PAT": "token"}
}

func confluenceEnv(url string) map[string]string {
	return map[string]string{"CONFLUENCE_BASE_URL": url, "CONFLUENCE_PAT": "token"}
}

func call(t *testing.T, h *Handler, name string, args string) *mcp.CallToolResult {
	t.Helper()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	res, err := h.Handle(context.Background(), name, raw)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	return res
}

func decodeList(t *testing.T, res *mcp.CallToolResult) []map[string]any {
	t.Helper()
	require.False(t, res.IsError, res.Content[0].Text)
	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	return out
}

func TestToolsAreRegistered(t *testing.T) {
	h := newTestHandler(t, nil)
	var names []string
	for _, tool := range h.Tools() {
		names = append(names, tool.Name)
		assert.Contains(t, h.schemas, tool.Name)
	}
	assert.Equal(t, []string{"jira_search", "jira_get_issue", "confluence_search", "confluence_get_page"}, names)
}

func TestJiraSearchLimitDescription(t *testing.T) {
	var ok bool
	var schema struct {
		Properties map[string]struct {
			Description string `json:"description"`
			Minimum     *int   `json:"minimum"`
		} `json:"properties"`
	}
	for _, tl := range newTestHandler(t, nil).Tools() {
		if tl.Name == "jira_search" {
			require.NoError(t, json.Unmarshal(tl.InputSchema, &schema))
			ok = true
		}
	}
	require.True(t, ok)
	limit := schema.Properties["limit"]
	assert.Contains(t, limit.Description, "0 fetches every match, possibly many pages")
	require.NotNil(t, limit.Minimum)
	assert.Zero(t, *limit.Minimum)
}

func TestJiraSearchDefaultLimit(t *testing.T) {
	srv := testutil.NewJiraServer(t, 120)
	h := newTestHandler(t, jiraEnv(srv.URL))

	issues := decodeList(t, call(t, h, "jira_search", `{"jql":"project = TEST"}`))
	assert.Len(t, issues, 50)
	assert.Equal(t, "TEST-1", issues[0]["key"])

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 50, calls[0].MaxResults)
}

func TestJiraSearchNoLimit(t *testing.T) {
	srv := testutil.NewJiraServer(t, 90)
	h := newTestHandler(t, jiraEnv(srv.URL))

	issues := decodeList(t, call(t, h, "jira_search", `{"jql":"project = TEST","limit":0,"batch_size":40,"fields":["summary"]}`))
	assert.Len(t, issues, 90)

	calls := srv.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "summary", calls[0].Fields)
	assert.Equal(t, 40, calls[2].MaxResults)
}

func TestJiraSearchRejectsBadArguments(t *testing.T) {
	srv := testutil.NewJiraServer(t, 5)
	h := newTestHandler(t, jiraEnv(srv.URL))

	tests := []struct {
		name string
		args string
		want string
		also string
	}{
		{name: "missing jql", args: `{}`, want: "jql"},
		{name: "no arguments", args: "", want: "jql"},
		{name: "batch too large", args: `{"jql":"x","batch_size":2000}`, want: "/batch_size"},
		{name: "batch zero", args: `{"jql":"x","batch_size":0}`, want: "/batch_size"},
		{name: "negative limit", args: `{"jql":"x","limit":-1}`, want: "/limit"},
		{name: "fields not a list", args: `{"jql":"x","fields":"summary"}`, want: "/fields"},
		{name: "unknown argument", args: `{"jql":"x","max":3}`, want: "max"},
		{name: "not json", args: `{"jql":`, want: "not valid JSON"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := call(t, h, "jira_search", tc.args)
			assert.True(t, res.IsError)
			assert.True(t, strings.HasPrefix(res.Content[0].Text, tc.want), res.Content[0].Text)
			assert.Contains(t, res.Content[0].Text, tc.also)
		})
	}
	assert.Empty(t, srv.Calls())
}

func TestArgumentName(t *testing.T) {
	tests := map[string]string{
		"":               "arguments",
		"/":              "arguments",
		"/jql":           "jql",
		"/fields/0":      "fields[0]",
		"/a~1b/c":        "a/b.c",
		"/expand/2/name": "expand[2].name",
	}
	for pointer, want := range tests {
		assert.Equal(t, want, argumentName(pointer), pointer)
	}
}

func TestJiraSearchMissingConfig(t *testing.T) {
	h := newTestHandler(t, map[string]string{"JIRA_BASE_URL": "https://jira"})

	res := call(t, h, "jira_search", `{"jql":"x"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "missing required configuration: JIRA_PAT")
}

func TestJiraSearchAuthConfigError(t *testing.T) {
	env := jiraEnv("https://jira")
	env["JIRA_AUTH_MODE"] = "basic"
	h := newTestHandler(t, env)

	res := call(t, h, "jira_search", `{"jql":"x"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, `auth mode "basic"`)
}

func TestSessionOpenedIsLogged(t *testing.T) {
	srv := testutil.NewJiraServer(t, 1)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env := jiraEnv(srv.URL + "/")
	env["JIRA_TIMEOUT"] = "7"
	h := newTestHandler(t, env, WithLogger(logger))

	decodeList(t, call(t, h, "jira_search", `{"jql":"x"}`))

	var rec map[string]any
	sc := bufio.NewScanner(&logs)
	for sc.Scan() {
		var r map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		if r["msg"] == "session opened" {
			rec = r
		}
	}
	require.NotNil(t, rec, logs.String())
	assert.Equal(t, "jira", rec["service"])
	assert.Equal(t, srv.URL, rec["base_url"])
	assert.EqualValues(t, 7*time.Second, rec["timeout"])
}

func TestJiraGetIssue(t *testing.T) {
	srv := testutil.NewJiraServer(t, 3)
	h := newTestHandler(t, jiraEnv(srv.URL))

	res := call(t, h, "jira_get_issue", `{"key":"TEST-2"}`)
	require.False(t, res.IsError, res.Content[0].Text)
	var issue map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &issue))
	assert.Equal(t, "TEST-2", issue["key"])

	res = call(t, h, "jira_get_issue", `{"key":"TEST-99"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "[404]")
	assert.Contains(t, res.Content[0].Text, "Hint: Jira returned 404")
}

func TestUnknownToolSuggestsNames(t *testing.T) {
	h := newTestHandler(t, nil)

	res := call(t, h, "jira_serch", `{}`)
	assert.True(t, res.IsError)
	assert.Equal(t, `Error: unknown tool "jira_serch". Did you mean: jira_search?`, res.Content[0].Text)

	res = call(t, h, "zzzzzzzzzz", `{}`)
	assert.Equal(t, `Error: unknown tool "zzzzzzzzzz"`, res.Content[0].Text)
}

func confluencePages() []testutil.ConfluencePage {
	return []testutil.ConfluencePage{
		{ID: "1", Title: "Design", Storage: `<p>Storage <strong>body</strong></p><ul><li>a</li></ul>`, View: `<p>Rendered &amp; <a href="https://x">link</a></p>`},
		{ID: "2", Title: "Notes", Storage: `<p>n</p>`, View: `<p>n</p>`},
	}
}

func TestConfluenceSearch(t *testing.T) {
	srv := testutil.NewConfluenceServer(t, confluencePages()...)
	h := newTestHandler(t, confluenceEnv(srv.URL))

	results := decodeList(t, call(t, h, "confluence_search", `{"cql":"type=page"}`))
	require.Len(t, results, 2)
	assert.Equal(t, "Design", results[0]["title"])

	q := srv.Queries()
	require.Len(t, q, 1)
	assert.Equal(t, "25", q[0].Get("limit"))
	assert.Equal(t, "type=page", q[0].Get("cql"))
}

func TestConfluenceGetPage(t *testing.T) {
	srv := testutil.NewConfluenceServer(t, confluencePages()...)
	h := newTestHandler(t, confluenceEnv(srv.URL))

	res := call(t, h, "confluence_get_page", `{"page_id":"1"}`)
	require.False(t, res.IsError, res.Content[0].Text)
	assert.Contains(t, res.Content[0].Text, `"value": "<p>Storage <strong>body</strong></p><ul><li>a</li></ul>"`)
	assert.Equal(t, "body.storage", srv.Queries()[0].Get("expand"))
}

func TestConfluenceGetPageWithText(t *testing.T) {
	srv := testutil.NewConfluenceServer(t, confluencePages()...)
	h := newTestHandler(t, confluenceEnv(srv.URL))

	var out struct {
		Page      map[string]any `json:"page"`
		Text      string         `json:"text"`
		Truncated bool           `json:"truncated"`
	}

	res := call(t, h, "confluence_get_page", `{"page_id":"1","include_text":true}`)
	require.False(t, res.IsError, res.Content[0].Text)
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	assert.Equal(t, "Storage body\n\n- a", out.Text)
	assert.Equal(t, "1", out.Page["id"])

	res = call(t, h, "confluence_get_page", `{"page_id":"1","expand":"body.view","include_text":true,"max_chars":8}`)
	require.False(t, res.IsError, res.Content[0].Text)
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	assert.Equal(t, "Rendered", out.Text)
	assert.True(t, out.Truncated)
}

func TestConfluenceUnauthorizedHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	h := newTestHandler(t, confluenceEnv(srv.URL))

	res := call(t, h, "confluence_search", `{"cql":"type=page"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "[401]")
	assert.Contains(t, res.Content[0].Text, "CONFLUENCE_PAT")
}

func TestMetricsAreRecorded(t *testing.T) {
	srv := testutil.NewJiraServer(t, 25)
	m := metrics.New()
	h := newTestHandler(t, jiraEnv(srv.URL), WithMetrics(m))

	decodeList(t, call(t, h, "jira_search", `{"jql":"x","batch_size":10}`))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `mcp_atlas_search_pages_total{service="jira"} 3`)
	assert.Contains(t, body, `mcp_atlas_http_requests_total{code="200",method="get",service="jira"} 3`)
}

func TestJSONResultKeepsMarkup(t *testing.T) {
	res := jsonResult(map[string]string{"html": "<b>x</b> & y"})
	assert.Equal(t, "{\n  \"html\": \"<b>x</b> & y\"\n}", res.Content[0].Text)
}
