package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/weave-logic-ai/clawft/internal/mcp"
)

// Shell serves a CompositeProvider's tool catalogue to an external MCP
// client over stdio, running every tools/call through an ordered
// middleware chain before dispatch.
type Shell struct {
	name     string
	version  string
	provider *mcp.CompositeProvider
	handler  Handler
	inner    *mcpserver.MCPServer
}

// New creates a Shell named name/version that serves provider, with the
// middleware chain applied in the canonical order: AuditLog (outermost,
// so it observes every outcome) wraps SecurityGuard, which wraps
// PermissionFilter, which wraps ResultGuard around the final dispatch.
func New(name, version string, provider *mcp.CompositeProvider, guard *SecurityGuard, filter *PermissionFilter, resultGuard *ResultGuard, audit *AuditLog) *Shell {
	dispatch := func(ctx context.Context, call Call) (*Result, error) {
		result, err := provider.CallTool(ctx, call.ToolName, call.Args)
		if err != nil {
			return &Result{Text: err.Error(), IsError: true}, nil
		}
		return &Result{Text: result.Text, IsError: result.IsError}, nil
	}

	var mws []Middleware
	if audit != nil {
		mws = append(mws, audit.Middleware())
	}
	if guard != nil {
		mws = append(mws, guard.Middleware())
	}
	if filter != nil {
		mws = append(mws, filter.Middleware())
	}
	if resultGuard != nil {
		mws = append(mws, resultGuard.Middleware())
	}

	s := &Shell{
		name:     name,
		version:  version,
		provider: provider,
		handler:  Chain(dispatch, mws...),
	}

	inner := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	s.inner = inner
	return s
}

// RegisterTools publishes provider's current tool list to the
// underlying MCP server. Call again after the provider's membership
// changes (servers connect/disconnect) to refresh the catalogue.
func (s *Shell) RegisterTools(ctx context.Context) error {
	defs, err := s.provider.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	for _, def := range defs {
		schema, err := json.Marshal(def.InputSchema)
		if err != nil {
			schema = []byte(`{"type":"object"}`)
		}
		tool := mcpgo.NewToolWithRawSchema(def.Name, def.Description, schema)
		s.inner.AddTool(tool, s.wrapHandler(def.Name))
	}
	return nil
}

func (s *Shell) wrapHandler(toolName string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		principal := PrincipalFromContext(ctx)
		result, err := s.handler(ctx, Call{ToolName: toolName, Args: args, Principal: principal})
		if err != nil {
			return &mcpgo.CallToolResult{
				Content: []mcpgo.Content{mcpgo.NewTextContent(err.Error())},
				IsError: true,
			}, nil
		}
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.NewTextContent(result.Text)},
			IsError: result.IsError,
		}, nil
	}
}

// Serve runs the stdio read/write loop until stdin closes or ctx is
// cancelled.
func (s *Shell) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	slog.Info("mcp.server.serve", "name", s.name)
	stdio := mcpserver.NewStdioServer(s.inner)
	return stdio.Listen(ctx, stdin, stdout)
}
