package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weave-logic-ai/clawft/internal/tools"
)

// ToolDefinition is the MCP-facing shape of a tool: name, description,
// and a JSON-schema input_schema (the wire field accepts both the
// MCP-native camelCase "inputSchema" and snake_case "input_schema").
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// UnmarshalJSON accepts either "inputSchema" or "input_schema" for the
// schema field, matching the MCP spec's camelCase wire name while
// tolerating snake_case producers.
func (t *ToolDefinition) UnmarshalJSON(data []byte) error {
	type alias ToolDefinition
	aux := &struct {
		InputSchemaSnake map[string]interface{} `json:"input_schema"`
		*alias
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if t.InputSchema == nil && aux.InputSchemaSnake != nil {
		t.InputSchema = aux.InputSchemaSnake
	}
	return nil
}

// CallToolResult is a provider-agnostic tool invocation result: plain
// text content plus an error flag, mirroring MCP's
// {type:"text", text:string} content-block shape flattened to a string.
type CallToolResult struct {
	Text    string
	IsError bool
}

// ToolErrorKind classifies a ToolProvider failure.
type ToolErrorKind int

const (
	ToolNotFound ToolErrorKind = iota
	ToolInvalidArgs
	ToolPermissionDenied
	ToolExecutionFailed
)

// ToolError is the error type returned by ToolProvider.CallTool.
type ToolError struct {
	Kind ToolErrorKind
	Msg  string
}

func (e *ToolError) Error() string { return e.Msg }

func newNotFound(name string) *ToolError {
	return &ToolError{Kind: ToolNotFound, Msg: fmt.Sprintf("tool %q not found", name)}
}

// ToolProvider is one source of tools aggregated by a CompositeProvider:
// the local registry, or a remote MCP server reached through the
// client in this package.
type ToolProvider interface {
	// Namespace identifies this provider among its siblings in a
	// composite; tool names are published as "{namespace}__{name}".
	Namespace() string
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error)
}

// RegistryProvider adapts a tools.Registry into a ToolProvider so it
// can be aggregated alongside remote MCP servers by a CompositeProvider.
type RegistryProvider struct {
	namespace string
	registry  *tools.Registry
}

// NewRegistryProvider wraps registry under the given namespace.
func NewRegistryProvider(namespace string, registry *tools.Registry) *RegistryProvider {
	return &RegistryProvider{namespace: namespace, registry: registry}
}

func (p *RegistryProvider) Namespace() string { return p.namespace }

func (p *RegistryProvider) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	names := p.registry.List()
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := p.registry.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Parameters(),
		})
	}
	return defs, nil
}

func (p *RegistryProvider) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	t, ok := p.registry.Get(name)
	if !ok {
		return nil, newNotFound(name)
	}
	result := t.Execute(ctx, args)
	if result.IsError {
		return &CallToolResult{Text: result.ForLLM, IsError: true}, nil
	}
	return &CallToolResult{Text: result.ForLLM}, nil
}
