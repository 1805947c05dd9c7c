package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// ConfluencePage is a stored page of the fake Confluence.
type ConfluencePage struct {
	ID      string
	Title   string
	Storage string // raw storage-format markup
	View    string // rendered HTML
}

// ConfluenceServer fakes the Confluence REST v1 content endpoints.
type ConfluenceServer struct {
	*httptest.Server

	Pages []ConfluencePage

	mu      sync.Mutex
	queries []url.Values
}

// NewConfluenceServer starts a fake Confluence serving pages.
func NewConfluenceServer(t testing.TB, pages ...ConfluencePage) *ConfluenceServer {
	t.Helper()

	s := &ConfluenceServer{Pages: pages}
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/content/search", s.handleSearch)
	mux.HandleFunc("/rest/api/content/", s.handleContent)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Queries returns the query strings received so far.
func (s *ConfluenceServer) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

func (s *ConfluenceServer) record(q url.Values) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
}

func (s *ConfluenceServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.record(q)

	results := make([]map[string]any, 0, len(s.Pages))
	for _, p := range s.Pages {
		results = append(results, s.render(p, q.Get("expand")))
	}
	writeJSON(w, map[string]any{"results": results, "size": len(results)})
}

func (s *ConfluenceServer) handleContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.record(q)

	id := strings.TrimPrefix(r.URL.Path, "/rest/api/content/")
	for _, p := range s.Pages {
		if p.ID == id {
			writeJSON(w, s.render(p, q.Get("expand")))
			return
		}
	}
	http.Error(w, `{"statusCode":404,"message":"No content found with id"}`, http.StatusNotFound)
}

func (s *ConfluenceServer) render(p ConfluencePage, expand string) map[string]any {
	body := map[string]any{}
	for _, e := range strings.Split(expand, ",") {
		switch strings.TrimSpace(e) {
		case "body.storage":
			body["storage"] = map[string]any{"value": p.Storage, "representation": "storage"}
		case "body.view":
			body["view"] = map[string]any{"value": p.View, "representation": "view"}
		}
	}
	out := map[string]any{"id": p.ID, "type": "page", "title": p.Title}
	if len(body) > 0 {
		out["body"] = body
	}
	return out
}
