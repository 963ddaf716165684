package mcp

import (
	"encoding/json"
	"testing"
)

func TestBridgeDisabledByDefault(t *testing.T) {
	b := DisabledBridge()
	if b.IsEnabled() {
		t.Fatal("expected disabled")
	}
	if b.Status() != BridgeUnconfigured {
		t.Fatalf("expected unconfigured, got %v", b.Status())
	}
}

func TestBridgeInitialize(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Enabled = true
	b := NewBridge(cfg)

	b.Initialize([]string{"read_file", "write_file"})
	if b.Status() != BridgeInitializing {
		t.Fatalf("expected initializing, got %v", b.Status())
	}
	if len(b.OutboundTools()) != 2 {
		t.Fatalf("expected 2 outbound tools, got %d", len(b.OutboundTools()))
	}
}

func TestBridgeSkipInitWhenDisabled(t *testing.T) {
	b := DisabledBridge()
	b.Initialize([]string{"tool1"})
	if b.Status() != BridgeUnconfigured {
		t.Fatalf("expected unconfigured, got %v", b.Status())
	}
	if len(b.OutboundTools()) != 0 {
		t.Fatal("expected no outbound tools")
	}
}

func TestBridgeActiveWhenBothConnected(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Enabled = true
	b := NewBridge(cfg)
	b.Initialize([]string{"out_tool"})
	b.SetInboundConnected([]string{"in_tool"})
	if b.Status() != BridgeActive {
		t.Fatalf("expected active, got %v", b.Status())
	}
}

func TestBridgeInboundOnly(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Enabled = true
	b := NewBridge(cfg)
	b.SetInboundConnected([]string{"tool1"})
	if b.Status() != BridgeInboundOnly {
		t.Fatalf("expected inbound_only, got %v", b.Status())
	}
}

func TestBridgeOutboundOnly(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Enabled = true
	b := NewBridge(cfg)
	b.Initialize([]string{"tool1"})
	b.SetOutboundConnected()
	if b.Status() != BridgeOutboundOnly {
		t.Fatalf("expected outbound_only, got %v", b.Status())
	}
}

func TestBridgeErrorState(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Enabled = true
	b := NewBridge(cfg)
	b.SetError("connection refused")
	if b.Status() != BridgeError {
		t.Fatalf("expected error, got %v", b.Status())
	}
}

func TestBridgeShutdownClearsInbound(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Enabled = true
	b := NewBridge(cfg)
	b.Initialize([]string{"tool"})
	b.SetInboundConnected([]string{"in"})
	b.Shutdown()
	if b.Status() != BridgeShuttingDown {
		t.Fatalf("expected shutting_down, got %v", b.Status())
	}
	if len(b.InboundTools()) != 0 {
		t.Fatal("expected inbound tools cleared")
	}
}

func TestBridgeNamespacedToolName(t *testing.T) {
	cfg := DefaultBridgeConfig()
	cfg.Namespace = "claude-code"
	b := NewBridge(cfg)
	if got := b.NamespacedToolName("read_file"); got != "mcp:claude-code:read_file" {
		t.Fatalf("got %q", got)
	}
}

func TestBridgeConfigDefaults(t *testing.T) {
	cfg := DefaultBridgeConfig()
	if cfg.Enabled {
		t.Fatal("expected disabled by default")
	}
	if cfg.Command != "claude" {
		t.Fatalf("got %q", cfg.Command)
	}
	if len(cfg.Args) != 2 || cfg.Args[0] != "mcp" || cfg.Args[1] != "serve" {
		t.Fatalf("got %v", cfg.Args)
	}
	if cfg.Namespace != "claude-code" {
		t.Fatalf("got %q", cfg.Namespace)
	}
}

func TestBridgeStatusMarshalsSnakeCase(t *testing.T) {
	out, err := json.Marshal(BridgeActive)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"active"` {
		t.Fatalf("got %s", out)
	}

	out, err = json.Marshal(BridgeShuttingDown)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"shutting_down"` {
		t.Fatalf("got %s", out)
	}
}
