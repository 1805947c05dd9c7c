// Package testutil contains fake Atlassian servers and helpers shared by tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// SearchCall records the paging parameters of one /search request.
type SearchCall struct {
	StartAt    int
	MaxResults int
	Fields     string
	Expand     string
	HasFields  bool
	HasExpand  bool
}

// JiraServer is an httptest server speaking just enough of Jira REST v2
// for the client tests: /search with offset paging and /issue/{key}.
type JiraServer struct {
	*httptest.Server

	// Issues is the full result set, in server order.
	Issues []map[string]any
	// MaxGrant caps the page size the server grants; 0 honours the request.
	MaxGrant int
	// Grant, when positive, is granted regardless of the request.
	Grant int
	// Total overrides the reported total for the n-th call (1-based).
	Total func(call int) int
	// FailOn makes the n-th call (1-based) answer 500.
	FailOn int

	mu    sync.Mutex
	calls []SearchCall
}

// NewJiraServer starts a fake Jira holding n issues keyed TEST-1..TEST-n.
func NewJiraServer(t testing.TB, n int) *JiraServer {
	t.Helper()

	s := &JiraServer{Issues: make([]map[string]any, 0, n)}
	for i := 1; i <= n; i++ {
		s.Issues = append(s.Issues, map[string]any{
			"id":  strconv.Itoa(10000 + i),
			"key": fmt.Sprintf("TEST-%d", i),
			"fields": map[string]any{
				"summary": fmt.Sprintf("Issue %d", i),
			},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", s.handleSearch)
	mux.HandleFunc("/rest/api/2/issue/", s.handleIssue)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Calls returns the search requests received so far.
func (s *JiraServer) Calls() []SearchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SearchCall(nil), s.calls...)
}

func (s *JiraServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startAt, _ := strconv.Atoi(q.Get("startAt"))
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))
	_, hasFields := q["fields"]
	_, hasExpand := q["expand"]

	s.mu.Lock()
	s.calls = append(s.calls, SearchCall{
		StartAt:    startAt,
		MaxResults: maxResults,
		Fields:     q.Get("fields"),
		Expand:     q.Get("expand"),
		HasFields:  hasFields,
		HasExpand:  hasExpand,
	})
	call := len(s.calls)
	s.mu.Unlock()

	if s.FailOn == call {
		http.Error(w, `{"errorMessages":["boom"]}`, http.StatusInternalServerError)
		return
	}

	granted := maxResults
	if s.MaxGrant > 0 && granted > s.MaxGrant {
		granted = s.MaxGrant
	}
	if s.Grant > 0 {
		granted = s.Grant
	}
	total := len(s.Issues)
	if s.Total != nil {
		total = s.Total(call)
	}

	from := min(startAt, len(s.Issues))
	to := min(from+granted, len(s.Issues))
	writeJSON(w, map[string]any{
		"startAt":    startAt,
		"maxResults": granted,
		"total":      total,
		"issues":     s.Issues[from:to],
	})
}

func (s *JiraServer) handleIssue(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
	for _, issue := range s.Issues {
		if issue["key"] == key {
			writeJSON(w, issue)
			return
		}
	}
	http.Error(w, `{"errorMessages":["Issue Does Not Exist"]}`, http.StatusNotFound)
}

// writeJSON encodes like the real servers do: markup is not HTML-escaped.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
