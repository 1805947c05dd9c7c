package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// Category represents a group of related tools
type Category struct {
	Name        string
	Description string
	Keywords    []string
	Tools       []string
}

// Registry is the catalogue of tools the server exposes.
type Registry struct {
	tools      map[string]mcp.Tool
	order      []string
	categories []Category
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry with the default categories.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]mcp.Tool),
		categories: defaultCategories(),
	}
}

// LoadTools registers tools, keeping the order of first registration.
func (r *Registry) LoadTools(tools []mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range tools {
		if _, ok := r.tools[tool.Name]; !ok {
			r.order = append(r.order, tool.Name)
		}
		r.tools[tool.Name] = tool
	}
}

// GetTool returns a tool by name
func (r *Registry) GetTool(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// ListTools returns all tools in registration order.
func (r *Registry) ListTools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// ListCategories returns all available categories
func (r *Registry) ListCategories() []Category {
	return r.categories
}

// ToolCount returns total number of available tools
func (r *Registry) ToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Category returns the category a tool belongs to, or "other".
func (r *Registry) Category(toolName string) string {
	for _, cat := range r.categories {
		for _, t := range cat.Tools {
			if t == toolName {
				return cat.Name
			}
		}
	}
	return "other"
}

// Suggest returns up to limit registered tool names that look like name,
// closest first. Subsequence matches (case-insensitive) rank ahead of names
// that are merely a few edits away.
func (r *Registry) Suggest(name string, limit int) []string {
	if limit <= 0 {
		limit = 3
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)

	seen := make(map[string]struct{}, len(ranks))
	var out []string
	for _, rk := range ranks {
		out = append(out, rk.Target)
		seen[rk.Target] = struct{}{}
	}

	type near struct {
		name string
		dist int
	}
	var nearby []near
	lower := strings.ToLower(name)
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		if d := fuzzy.LevenshteinDistance(lower, strings.ToLower(n)); d <= maxEdits(n) {
			nearby = append(nearby, near{n, d})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].dist < nearby[j].dist })
	for _, c := range nearby {
		out = append(out, c.name)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func maxEdits(name string) int {
	if n := len(name) / 3; n > 2 {
		return n
	}
	return 2
}

func defaultCategories() []Category {
	return []Category{
		{
			Name:        "jira",
			Description: "Issue search and retrieval (JQL)",
			Keywords:    []string{"issue", "ticket", "jql", "bug", "task", "epic"},
			Tools:       []string{"jira_search", "jira_get_issue"},
		},
		{
			Name:        "confluence",
			Description: "Wiki content search and page retrieval (CQL)",
			Keywords:    []string{"page", "wiki", "cql", "space", "doc"},
			Tools:       []string{"confluence_search", "confluence_get_page"},
		},
	}
}
