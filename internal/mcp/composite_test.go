package mcp

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type mockProvider struct {
	ns    string
	tools []string
}

func newMockProvider(ns string, toolNames ...string) *mockProvider {
	return &mockProvider{ns: ns, tools: toolNames}
}

func (p *mockProvider) Namespace() string { return p.ns }

func (p *mockProvider) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	defs := make([]ToolDefinition, 0, len(p.tools))
	for _, name := range p.tools {
		defs = append(defs, ToolDefinition{
			Name:        name,
			Description: fmt.Sprintf("%s/%s", p.ns, name),
			InputSchema: map[string]interface{}{"type": "object"},
		})
	}
	return defs, nil
}

func (p *mockProvider) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	for _, t := range p.tools {
		if t == name {
			return &CallToolResult{Text: fmt.Sprintf("%s:%s called", p.ns, name)}, nil
		}
	}
	return nil, newNotFound(name)
}

func TestCompositeDefaultIsEmpty(t *testing.T) {
	c := NewCompositeProvider()
	if c.ProviderCount() != 0 {
		t.Fatal("expected 0 providers")
	}
	defs, err := c.ListTools(context.Background())
	if err != nil || len(defs) != 0 {
		t.Fatalf("expected empty list, got %v, %v", defs, err)
	}
}

func TestCompositeListToolsPrefixesNames(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("alpha", "foo", "bar"))
	c.Register(newMockProvider("beta", "baz"))

	defs, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	for _, want := range []string{"alpha__foo", "alpha__bar", "beta__baz"} {
		if !names[want] {
			t.Fatalf("missing %q in %v", want, names)
		}
	}
}

func TestCompositeListToolsPreservesDescriptions(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("ns", "tool1"))

	defs, _ := c.ListTools(context.Background())
	if defs[0].Description != "ns/tool1" {
		t.Fatalf("got %q", defs[0].Description)
	}
}

func TestCompositeCallToolRoutesByNamespace(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("alpha", "foo"))
	c.Register(newMockProvider("beta", "bar"))

	result, err := c.CallTool(context.Background(), "alpha__foo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "alpha:foo called" {
		t.Fatalf("got %q", result.Text)
	}

	result, err = c.CallTool(context.Background(), "beta__bar", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "beta:bar called" {
		t.Fatalf("got %q", result.Text)
	}
}

func TestCompositeCallToolUnknownNamespaceNotFound(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("alpha", "foo"))

	_, err := c.CallTool(context.Background(), "unknown__foo", nil)
	te, ok := err.(*ToolError)
	if !ok || te.Kind != ToolNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("expected error to mention namespace, got %q", err.Error())
	}
}

func TestCompositeCallToolUnknownToolInNamespaceNotFound(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("alpha", "foo"))

	_, err := c.CallTool(context.Background(), "alpha__nonexistent", nil)
	te, ok := err.(*ToolError)
	if !ok || te.Kind != ToolNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCompositeCallToolWithoutNamespaceTriesAll(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("alpha", "shared"))
	c.Register(newMockProvider("beta", "unique"))

	result, err := c.CallTool(context.Background(), "shared", nil)
	if err != nil || result.Text != "alpha:shared called" {
		t.Fatalf("got %v, %v", result, err)
	}

	result, err = c.CallTool(context.Background(), "unique", nil)
	if err != nil || result.Text != "beta:unique called" {
		t.Fatalf("got %v, %v", result, err)
	}
}

func TestCompositeCallToolWithoutNamespaceNotFound(t *testing.T) {
	c := NewCompositeProvider()
	_, err := c.CallTool(context.Background(), "missing", nil)
	te, ok := err.(*ToolError)
	if !ok || te.Kind != ToolNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected error to mention tool name, got %q", err.Error())
	}
}

func TestCompositeProviderCount(t *testing.T) {
	c := NewCompositeProvider()
	c.Register(newMockProvider("a"))
	c.Register(newMockProvider("b"))
	if c.ProviderCount() != 2 {
		t.Fatalf("got %d", c.ProviderCount())
	}
}
