package mcp

import (
	"fmt"
	"log/slog"
)

// BridgeStatus reports the lifecycle state of a Bridge.
type BridgeStatus int

const (
	BridgeUnconfigured BridgeStatus = iota
	BridgeInitializing
	BridgeActive
	BridgeOutboundOnly
	BridgeInboundOnly
	BridgeError
	BridgeShuttingDown
)

var bridgeStatusNames = map[BridgeStatus]string{
	BridgeUnconfigured: "unconfigured",
	BridgeInitializing: "initializing",
	BridgeActive:        "active",
	BridgeOutboundOnly:  "outbound_only",
	BridgeInboundOnly:   "inbound_only",
	BridgeError:         "error",
	BridgeShuttingDown:  "shutting_down",
}

func (s BridgeStatus) String() string {
	if name, ok := bridgeStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("BridgeStatus(%d)", int(s))
}

func (s BridgeStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// BridgeConfig configures a Bridge's connection to an external MCP
// peer (e.g. Claude Code acting as an MCP server).
type BridgeConfig struct {
	Enabled     bool              `json:"enabled"`
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env,omitempty"`
	Namespace   string            `json:"namespace"`
}

// DefaultBridgeConfig returns a disabled bridge configuration with the
// namespace and default command pre-filled.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Enabled:   false,
		Command:   "claude",
		Args:      []string{"mcp", "serve"},
		Namespace: "claude-code",
	}
}

// Bridge tracks the two independent directions of an MCP peering:
// outbound (this process exposes tools to the peer) and inbound (this
// process consumes tools discovered from the peer). Status reflects
// which directions are currently live.
type Bridge struct {
	config BridgeConfig
	status BridgeStatus

	inboundTools  []string
	outboundTools []string
}

// NewBridge creates a bridge with the given configuration.
func NewBridge(cfg BridgeConfig) *Bridge {
	return &Bridge{config: cfg, status: BridgeUnconfigured}
}

// DisabledBridge returns a bridge using DefaultBridgeConfig.
func DisabledBridge() *Bridge {
	return NewBridge(DefaultBridgeConfig())
}

func (b *Bridge) Status() BridgeStatus   { return b.status }
func (b *Bridge) Config() BridgeConfig   { return b.config }
func (b *Bridge) IsEnabled() bool        { return b.config.Enabled }
func (b *Bridge) InboundTools() []string  { return b.inboundTools }
func (b *Bridge) OutboundTools() []string { return b.outboundTools }

// Initialize records the tools this process exposes outbound and moves
// the bridge to Initializing. A no-op when the bridge is disabled.
func (b *Bridge) Initialize(outboundTools []string) {
	if !b.config.Enabled {
		slog.Debug("mcp.bridge.skip_init", "reason", "disabled")
		return
	}
	b.outboundTools = outboundTools
	b.status = BridgeInitializing
	slog.Info("mcp.bridge.initializing",
		"outbound_tools", len(b.outboundTools),
		"namespace", b.config.Namespace,
	)
}

// SetInboundConnected records tools discovered from the peer and
// recomputes status.
func (b *Bridge) SetInboundConnected(tools []string) {
	b.inboundTools = tools
	b.updateStatus()
	slog.Info("mcp.bridge.inbound_active", "tools", len(b.inboundTools))
}

// SetOutboundConnected marks the outbound direction live and
// recomputes status.
func (b *Bridge) SetOutboundConnected() {
	b.updateStatus()
	slog.Info("mcp.bridge.outbound_active")
}

// SetError moves the bridge to the Error state.
func (b *Bridge) SetError(reason string) {
	b.status = BridgeError
	slog.Warn("mcp.bridge.error", "reason", reason)
}

// Shutdown clears inbound tools and moves the bridge to ShuttingDown.
func (b *Bridge) Shutdown() {
	b.status = BridgeShuttingDown
	b.inboundTools = nil
	slog.Info("mcp.bridge.shutdown")
}

// NamespacedToolName returns the fully-qualified name clawft sees for
// an inbound tool discovered from the peer.
func (b *Bridge) NamespacedToolName(name string) string {
	return fmt.Sprintf("mcp:%s:%s", b.config.Namespace, name)
}

func (b *Bridge) updateStatus() {
	hasInbound := len(b.inboundTools) > 0
	hasOutbound := len(b.outboundTools) > 0

	switch {
	case hasInbound && hasOutbound:
		b.status = BridgeActive
	case hasInbound:
		b.status = BridgeInboundOnly
	case hasOutbound:
		b.status = BridgeOutboundOnly
	default:
		b.status = BridgeInitializing
	}
}
