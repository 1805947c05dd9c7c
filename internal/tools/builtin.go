package tools

import (
	"encoding/json"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// BuiltinTools returns the four Atlassian tools with their argument schemas.
func BuiltinTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "jira_search",
			Description: "Search Jira issues with JQL, e.g. 'project = ENG AND statusCategory != Done ORDER BY updated DESC'. Pages through the results and returns the issue objects (Jira REST v2) in server order.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"jql": {"type": "string", "minLength": 1, "description": "JQL query"},
					"fields": {"type": "array", "items": {"type": "string"}, "description": "Fields to return, e.g. [\"summary\",\"assignee\",\"status\"] (default: server default set)"},
					"expand": {"type": "array", "items": {"type": "string"}, "description": "Entities to expand, e.g. [\"changelog\",\"renderedFields\"]"},
					"limit": {"type": "integer", "minimum": 0, "default": 50, "description": "Max issues to return (default 50); 0 fetches every match, possibly many pages"},
					"batch_size": {"type": "integer", "minimum": 1, "maximum": 1000, "default": 100, "description": "Issues requested per page"}
				},
				"required": ["jql"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "jira_get_issue",
			Description: "Get a single Jira issue by key (e.g. 'PROJ-123').",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"key": {"type": "string", "minLength": 1, "description": "Issue key or id"},
					"fields": {"type": "array", "items": {"type": "string"}, "description": "Fields to return"},
					"expand": {"type": "array", "items": {"type": "string"}, "description": "Entities to expand"}
				},
				"required": ["key"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "confluence_search",
			Description: "Search Confluence content with CQL, e.g. 'type=page AND space=ENG AND title~\"design\"'. Results include the space and the rendered view HTML.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"cql": {"type": "string", "minLength": 1, "description": "CQL query"},
					"limit": {"type": "integer", "minimum": 1, "default": 25, "description": "Number of results to return"}
				},
				"required": ["cql"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "confluence_get_page",
			Description: "Get a single Confluence page by id. expand selects the body: body.storage (raw storage format, default) or body.view (rendered HTML). include_text adds a plain-text rendering of the body.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"page_id": {"type": "string", "minLength": 1, "description": "Numeric page id"},
					"expand": {"type": "string", "default": "body.storage", "description": "Comma-separated expansions"},
					"include_text": {"type": "boolean", "default": false, "description": "Also return the body as plain text"},
					"max_chars": {"type": "integer", "minimum": 0, "description": "Truncate the plain text to this many characters (0: no limit)"}
				},
				"required": ["page_id"],
				"additionalProperties": false
			}`),
		},
	}
}
