package mcp

import (
	"context"
	"strings"
)

// CompositeProvider aggregates any number of ToolProviders — the local
// tool registry and any connected remote MCP servers — behind one
// namespace-routed surface, for the MCP server shell to publish to
// external clients.
type CompositeProvider struct {
	providers []ToolProvider
}

// NewCompositeProvider creates an empty composite.
func NewCompositeProvider() *CompositeProvider {
	return &CompositeProvider{}
}

// Register appends a provider. Registration order decides the
// precedence used when routing unqualified (non-namespaced) calls.
func (c *CompositeProvider) Register(p ToolProvider) {
	c.providers = append(c.providers, p)
}

// ProviderCount returns the number of registered providers.
func (c *CompositeProvider) ProviderCount() int {
	return len(c.providers)
}

// ListTools lists tools from every provider, each name prefixed with
// "{namespace}__".
func (c *CompositeProvider) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	var all []ToolDefinition
	for _, p := range c.providers {
		ns := p.Namespace()
		defs, err := p.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			d.Name = ns + "__" + d.Name
			all = append(all, d)
		}
	}
	return all, nil
}

// CallTool routes a (possibly namespaced) tool call.
//
// A name containing "__" is split on the first occurrence; the prefix
// selects the provider by namespace and the remainder is passed through
// unqualified. An unmatched namespace is a NotFound error.
//
// A name with no "__" separator is tried against every provider in
// registration order: a NotFound error from one provider falls through
// to the next; any other error, or a success, stops the search.
func (c *CompositeProvider) CallTool(ctx context.Context, namespacedName string, args map[string]interface{}) (*CallToolResult, error) {
	if ns, local, ok := strings.Cut(namespacedName, "__"); ok {
		for _, p := range c.providers {
			if p.Namespace() == ns {
				return p.CallTool(ctx, local, args)
			}
		}
		return nil, &ToolError{Kind: ToolNotFound, Msg: "no provider for namespace " + ns}
	}

	for _, p := range c.providers {
		result, err := p.CallTool(ctx, namespacedName, args)
		if err == nil {
			return result, nil
		}
		if te, ok := err.(*ToolError); ok && te.Kind == ToolNotFound {
			continue
		}
		return nil, err
	}
	return nil, newNotFound(namespacedName)
}
