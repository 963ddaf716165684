package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/weave-logic-ai/clawft/internal/providers"
)

// Tool is implemented by every callable tool, whether built in, an MCP
// bridge, or a subagent delegate. Execute must tolerate arbitrary
// latency and is responsible for its own concurrency discipline —
// the registry never serializes calls.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ErrorKind classifies why a registry-level tool invocation failed.
type ErrorKind int

const (
	// NotFound means no tool is registered under the requested name.
	NotFound ErrorKind = iota
	// InvalidArgs means the arguments failed schema or pre-validation.
	InvalidArgs
	// PermissionDenied means a security policy rejected the call.
	PermissionDenied
	// ExecutionFailed means the tool ran but failed.
	ExecutionFailed
)

// Error is the registry's error taxonomy for tool dispatch failures.
type Error struct {
	Kind ErrorKind
	Name string // tool name, when applicable
	Msg  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("tool not found: %s", e.Name)
	case InvalidArgs:
		return fmt.Sprintf("invalid arguments for tool %s: %s", e.Name, e.Msg)
	case PermissionDenied:
		return fmt.Sprintf("permission denied for tool %s: %s", e.Name, e.Msg)
	case ExecutionFailed:
		return fmt.Sprintf("tool %s execution failed: %s", e.Name, e.Msg)
	default:
		return e.Msg
	}
}

// NotFoundError builds a NotFound registry error for name.
func NotFoundError(name string) *Error {
	return &Error{Kind: NotFound, Name: name, Msg: "not registered"}
}

// Registry is a name-keyed, concurrency-safe map from tool name to
// implementation. A tool name is unique; registering the same name
// twice replaces the prior entry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under its own Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name. A no-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool names in no particular order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Schemas returns ToolDefinitions for every registered tool, suitable
// for publishing to an LLM provider.
func (r *Registry) Schemas() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToProviderDef(t))
	}
	return defs
}

// Execute dispatches args to the named tool, returning a registry-level
// Error (wrapped as *Result.Err) when the tool can't be found.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("tool not found: %s", name)).WithError(NotFoundError(name))
	}
	return t.Execute(ctx, args)
}

// ToProviderDef converts a Tool into the schema shape published to LLM
// providers and MCP clients.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
