package mcp

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/weave-logic-ai/clawft/internal/tools"
)

// BridgeTool adapts a tool discovered on a remote MCP server into the
// local tools.Tool interface, so it can sit in the same registry as
// built-in tools and be published to LLM providers unmodified.
type BridgeTool struct {
	server    string
	prefix    string
	original  ToolDefinition
	client    *Client
	timeout   time.Duration
	connected *atomic.Bool
}

// NewBridgeTool wraps def as discovered on server, prefixing its publicly
// visible name with toolPrefix (or the server name, if empty) followed by
// "__" to avoid collisions across servers.
func NewBridgeTool(server string, def ToolDefinition, client *Client, toolPrefix string, timeoutSec int, connected *atomic.Bool) *BridgeTool {
	if toolPrefix == "" {
		toolPrefix = server
	}
	return &BridgeTool{
		server:    server,
		prefix:    toolPrefix,
		original:  def,
		client:    client,
		timeout:   time.Duration(timeoutSec) * time.Second,
		connected: connected,
	}
}

// Name returns the namespaced tool name, e.g. "github__create_issue".
func (t *BridgeTool) Name() string {
	return t.prefix + "__" + t.original.Name
}

// OriginalName returns the tool name as reported by the remote server,
// without the namespace prefix.
func (t *BridgeTool) OriginalName() string {
	return t.original.Name
}

// Server returns the name of the MCP server this tool was discovered on.
func (t *BridgeTool) Server() string {
	return t.server
}

func (t *BridgeTool) Description() string {
	if t.original.Description == "" {
		return fmt.Sprintf("MCP tool %q from server %q", t.original.Name, t.server)
	}
	return t.original.Description
}

// Parameters returns the MCP tool's JSON input schema, in the shape used
// by LLM provider tool definitions.
func (t *BridgeTool) Parameters() map[string]interface{} {
	if t.original.InputSchema == nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	schema := t.original.InputSchema
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]interface{}{}
	}
	return schema
}

// Execute calls tools/call on the remote server via the from-scratch MCP
// client and flattens the returned content blocks into a single string.
func (t *BridgeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if t.connected != nil && !t.connected.Load() {
		return tools.ErrorResult(fmt.Sprintf("mcp server %q is disconnected", t.server))
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	result, err := t.client.CallTool(callCtx, t.original.Name, args)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("mcp call_tool %s: %v", t.Name(), err))
	}
	if result.IsError {
		return tools.ErrorResult(result.Text)
	}
	return tools.SilentResult(result.Text)
}
