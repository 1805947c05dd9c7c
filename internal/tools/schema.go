package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golovatskygroup/mcp-atlas/internal/atlassian"
	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// argSchemas maps a tool name to its compiled input schema.
type argSchemas map[string]*jsonschema.Schema

func compileArgSchemas(tools []mcp.Tool) (argSchemas, error) {
	out := make(argSchemas, len(tools))
	for _, tool := range tools {
		if len(tool.InputSchema) == 0 {
			continue
		}
		s, err := jsonschema.CompileString(tool.Name+".json", string(tool.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("input schema of %s: %w", tool.Name, err)
		}
		out[tool.Name] = s
	}
	return out, nil
}

// check validates decoded arguments of tool. A violation comes back as
// *atlassian.ValidationError naming the offending argument, or "arguments"
// when the problem is with the object as a whole (missing or unknown keys).
func (s argSchemas) check(tool string, args any) error {
	schema, ok := s[tool]
	if !ok {
		return nil
	}
	err := schema.Validate(args)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &atlassian.ValidationError{Field: argumentName(ve.InstanceLocation), Reason: ve.Message}
}

// argumentName turns a JSON pointer such as /fields/0 into fields[0].
func argumentName(pointer string) string {
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	if parts[0] == "" {
		return "arguments"
	}
	var sb strings.Builder
	for i, p := range parts {
		p = strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
		switch _, err := strconv.Atoi(p); {
		case i == 0:
			sb.WriteString(p)
		case err == nil:
			sb.WriteString("[" + p + "]")
		default:
			sb.WriteString("." + p)
		}
	}
	return sb.String()
}

// decodeArgs parses raw tool arguments. Absent or null arguments become an
// empty object so that "required" rules report the missing fields.
func decodeArgs(args json.RawMessage) (any, error) {
	var v any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
		}
	}
	if v == nil {
		v = map[string]any{}
	}
	return v, nil
}
