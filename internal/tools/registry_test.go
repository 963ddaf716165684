package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub: " + s.name }
func (s *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return SilentResult("executed " + s.name)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "foo"})

	tool, ok := r.Get("foo")
	if !ok || tool.Name() != "foo" {
		t.Fatalf("expected to find foo, got %v, %v", tool, ok)
	}
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	if ok {
		t.Fatal("expected not found")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "foo"})
	r.Unregister("foo")
	if _, ok := r.Get("foo"); ok {
		t.Fatal("expected foo to be removed")
	}
}

func TestRegistryReplacesOnDuplicateName(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "foo"})
	r.Register(&stubTool{name: "foo"})
	if len(r.List()) != 1 {
		t.Fatalf("expected single entry after re-register, got %d", len(r.List()))
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "a"})
	r.Register(&stubTool{name: "b"})
	names := r.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}

func TestRegistryExecuteNotFound(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(context.Background(), "missing", nil)
	if !result.IsError {
		t.Fatal("expected error result")
	}
	regErr, ok := result.Err.(*Error)
	if !ok || regErr.Kind != NotFound {
		t.Fatalf("expected NotFound registry error, got %v", result.Err)
	}
}

func TestRegistryExecuteDispatches(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "foo"})
	result := r.Execute(context.Background(), "foo", nil)
	if result.ForLLM != "executed foo" {
		t.Fatalf("got %q", result.ForLLM)
	}
}

func TestRegistrySchemas(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "foo"})
	defs := r.Schemas()
	if len(defs) != 1 || defs[0].Function.Name != "foo" {
		t.Fatalf("got %v", defs)
	}
}

func TestToProviderDef(t *testing.T) {
	def := ToProviderDef(&stubTool{name: "bar"})
	if def.Type != "function" || def.Function.Name != "bar" {
		t.Fatalf("got %v", def)
	}
}
