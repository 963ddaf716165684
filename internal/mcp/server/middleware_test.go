package server

import (
	"context"
	"testing"

	"github.com/weave-logic-ai/clawft/internal/security"
)

func terminalEcho(ctx context.Context, call Call) (*Result, error) {
	return &Result{Text: "ok:" + call.ToolName}, nil
}

func TestChainWithNoMiddlewarePassesThrough(t *testing.T) {
	h := Chain(terminalEcho)
	result, err := h(context.Background(), Call{ToolName: "ping"})
	if err != nil || result.Text != "ok:ping" {
		t.Fatalf("got %v, %v", result, err)
	}
}

func TestSecurityGuardBlocksDangerousCommand(t *testing.T) {
	g := &SecurityGuard{CommandPolicy: security.SafeDefaults()}
	h := Chain(terminalEcho, g.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "exec", Args: map[string]interface{}{"command": "rm -rf /"}})
	if !result.IsError {
		t.Fatal("expected dangerous command to be blocked")
	}
}

func TestSecurityGuardAllowsSafeCommand(t *testing.T) {
	g := &SecurityGuard{CommandPolicy: security.SafeDefaults()}
	h := Chain(terminalEcho, g.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "exec", Args: map[string]interface{}{"command": "echo hi"}})
	if result.IsError {
		t.Fatalf("expected safe command to pass, got %q", result.Text)
	}
}

func TestPermissionFilterDeniesListedTool(t *testing.T) {
	f := &PermissionFilter{Deny: map[string][]string{"alice": {"exec"}}}
	h := Chain(terminalEcho, f.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "exec", Principal: "alice"})
	if !result.IsError {
		t.Fatal("expected denied tool to be blocked")
	}
}

func TestPermissionFilterAllowListRestricts(t *testing.T) {
	f := &PermissionFilter{Allow: map[string][]string{"bob": {"read_file"}}}
	h := Chain(terminalEcho, f.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "exec", Principal: "bob"})
	if !result.IsError {
		t.Fatal("expected tool outside allow list to be blocked")
	}

	result, _ = h(context.Background(), Call{ToolName: "read_file", Principal: "bob"})
	if result.IsError {
		t.Fatal("expected allow-listed tool to pass")
	}
}

func TestPermissionFilterIgnoresAnonymous(t *testing.T) {
	f := &PermissionFilter{Deny: map[string][]string{"alice": {"exec"}}}
	h := Chain(terminalEcho, f.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "exec"})
	if result.IsError {
		t.Fatal("expected anonymous caller to bypass per-principal filtering")
	}
}

func TestAuditLogRecordsSuccessAndDenied(t *testing.T) {
	audit := NewAuditLog(10)
	g := &SecurityGuard{CommandPolicy: security.SafeDefaults()}
	h := Chain(terminalEcho, audit.Middleware(), g.Middleware())

	h(context.Background(), Call{ToolName: "exec", Args: map[string]interface{}{"command": "echo hi"}})
	h(context.Background(), Call{ToolName: "exec", Args: map[string]interface{}{"command": "rm -rf /"}})

	entries := audit.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Outcome != OutcomeSuccess {
		t.Fatalf("expected first call success, got %v", entries[0].Outcome)
	}
	if entries[1].Outcome != OutcomeDenied {
		t.Fatalf("expected second call denied, got %v", entries[1].Outcome)
	}
}

func TestAuditLogEvictsOldest(t *testing.T) {
	audit := NewAuditLog(3)
	h := Chain(terminalEcho, audit.Middleware())

	for i := 0; i < 5; i++ {
		h(context.Background(), Call{ToolName: "tool"})
	}

	if audit.Len() != 3 {
		t.Fatalf("expected capacity-bounded length 3, got %d", audit.Len())
	}
}

func TestResultGuardTruncatesLongResult(t *testing.T) {
	long := func(ctx context.Context, call Call) (*Result, error) {
		text := ""
		for i := 0; i < 500; i++ {
			text += "x"
		}
		return &Result{Text: text}, nil
	}
	rg := &ResultGuard{MaxBytes: 100}
	h := Chain(long, rg.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "big"})
	if len(result.Text) >= 500 {
		t.Fatalf("expected truncation, got length %d", len(result.Text))
	}
}

func TestResultGuardSkipsErrorResults(t *testing.T) {
	errHandler := func(ctx context.Context, call Call) (*Result, error) {
		return &Result{Text: "boom", IsError: true}, nil
	}
	rg := &ResultGuard{MaxBytes: 1}
	h := Chain(errHandler, rg.Middleware())

	result, _ := h(context.Background(), Call{ToolName: "x"})
	if result.Text != "boom" {
		t.Fatalf("expected error result untouched, got %q", result.Text)
	}
}
