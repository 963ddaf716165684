package agent

import (
	"log/slog"

	"github.com/weave-logic-ai/clawft/internal/bus"
)

// RoutingResult is the outcome of routing an inbound message to an agent.
type RoutingResult struct {
	Kind    RoutingKind
	AgentID string
}

// RoutingKind distinguishes how a RoutingResult was produced.
type RoutingKind int

const (
	// RoutingNoMatch means no route matched and no catch-all is configured.
	RoutingNoMatch RoutingKind = iota
	// RoutingAgent means a rule matched explicitly.
	RoutingAgent
	// RoutingCatchAll means no rule matched and the catch-all agent was used.
	RoutingCatchAll
)

// IsMatch reports whether the message was routed to a concrete agent
// (either by rule or by catch-all).
func (r RoutingResult) IsMatch() bool {
	return r.Kind == RoutingAgent || r.Kind == RoutingCatchAll
}

// MatchCriteria selects which inbound messages a route applies to.
// Every present field must equal the corresponding field on the
// message; absent (nil) fields act as wildcards.
type MatchCriteria struct {
	UserID *string // compared against InboundMessage.SenderID
	Phone  *string // compared against InboundMessage.SenderID, WhatsApp channel only
	ChatID *string // compared against InboundMessage.ChatID
}

func (m MatchCriteria) matches(channel, senderID, chatID string) bool {
	if m.UserID != nil && *m.UserID != senderID {
		return false
	}
	if m.Phone != nil {
		if channel != "whatsapp" || *m.Phone != senderID {
			return false
		}
	}
	if m.ChatID != nil && *m.ChatID != chatID {
		return false
	}
	return true
}

// AgentRoute binds a channel and match criteria to an agent ID. Routes
// are evaluated in declaration order; the first match wins.
type AgentRoute struct {
	Channel       string
	MatchCriteria MatchCriteria
	Agent         string
}

// AgentRoutingConfig is the declarative input to NewRoutingTable: an ordered
// list of routes plus an optional catch-all agent.
type AgentRoutingConfig struct {
	Routes   []AgentRoute
	CatchAll string // empty means no catch-all configured
}

// RoutingTable routes inbound messages to agent instances by channel and
// match criteria, first-match-wins, with an optional catch-all
// fallback for anonymous senders and unmatched messages.
type RoutingTable struct {
	routes   []AgentRoute
	catchAll string
}

// NewRoutingTable builds a RoutingTable from cfg.
func NewRoutingTable(cfg AgentRoutingConfig) *RoutingTable {
	return &RoutingTable{routes: cfg.Routes, catchAll: cfg.CatchAll}
}

// EmptyRoutingTable returns a router with no rules and no catch-all; every
// message routes to NoMatch.
func EmptyRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// RoutingTableWithCatchAll returns a router with only a catch-all agent
// configured (no rules).
func RoutingTableWithCatchAll(agent string) *RoutingTable {
	return &RoutingTable{catchAll: agent}
}

// Route resolves msg to an agent ID. Anonymous messages (empty
// SenderID) route straight to the catch-all, if any. Otherwise routes
// are walked in declaration order and the first whose channel and
// match criteria both match wins. If nothing matches, the catch-all is
// used when configured; otherwise RoutingNoMatch is returned and a
// warning is logged so the miss is never silently dropped.
func (r *RoutingTable) Route(msg bus.InboundMessage) RoutingResult {
	if msg.SenderID == "" {
		return r.routeAnonymous(msg)
	}

	for _, route := range r.routes {
		if route.Channel == msg.Channel && route.MatchCriteria.matches(msg.Channel, msg.SenderID, msg.ChatID) {
			return RoutingResult{Kind: RoutingAgent, AgentID: route.Agent}
		}
	}

	if r.catchAll != "" {
		return RoutingResult{Kind: RoutingCatchAll, AgentID: r.catchAll}
	}

	slog.Warn("no agent configured for this channel/user",
		"channel", msg.Channel, "sender_id", msg.SenderID, "chat_id", msg.ChatID)
	return RoutingResult{Kind: RoutingNoMatch}
}

func (r *RoutingTable) routeAnonymous(msg bus.InboundMessage) RoutingResult {
	if r.catchAll != "" {
		return RoutingResult{Kind: RoutingCatchAll, AgentID: r.catchAll}
	}
	slog.Warn("anonymous message with no catch-all configured",
		"channel", msg.Channel, "chat_id", msg.ChatID)
	return RoutingResult{Kind: RoutingNoMatch}
}

// RouteCount returns the number of configured rules.
func (r *RoutingTable) RouteCount() int {
	return len(r.routes)
}

// HasCatchAll reports whether a catch-all agent is configured.
func (r *RoutingTable) HasCatchAll() bool {
	return r.catchAll != ""
}
