package agent

import (
	"testing"
	"time"

	"github.com/weave-logic-ai/clawft/internal/bus"
)

func strptr(s string) *string { return &s }

func makeRouterMsg(channel, senderID, chatID string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   "test",
		Timestamp: time.Now(),
	}
}

func makeTestRoutingTable() *RoutingTable {
	return NewRoutingTable(AgentRoutingConfig{
		Routes: []AgentRoute{
			{
				Channel:       "telegram",
				MatchCriteria: MatchCriteria{UserID: strptr("user123")},
				Agent:         "work-agent",
			},
			{
				Channel:       "whatsapp",
				MatchCriteria: MatchCriteria{Phone: strptr("+15551234")},
				Agent:         "personal-agent",
			},
			{
				Channel:       "slack",
				MatchCriteria: MatchCriteria{},
				Agent:         "slack-agent",
			},
		},
		CatchAll: "default-agent",
	})
}

func TestRouteFirstMatchWins(t *testing.T) {
	r := makeTestRoutingTable()
	msg := makeRouterMsg("telegram", "user123", "chat1")
	got := r.Route(msg)
	if got.Kind != RoutingAgent || got.AgentID != "work-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteWhatsappByPhone(t *testing.T) {
	r := makeTestRoutingTable()
	msg := makeRouterMsg("whatsapp", "+15551234", "chat2")
	got := r.Route(msg)
	if got.Kind != RoutingAgent || got.AgentID != "personal-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteWildcardMatch(t *testing.T) {
	r := makeTestRoutingTable()
	msg := makeRouterMsg("slack", "any_user", "any_chat")
	got := r.Route(msg)
	if got.Kind != RoutingAgent || got.AgentID != "slack-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteNoMatchFallsToCatchAll(t *testing.T) {
	r := makeTestRoutingTable()
	msg := makeRouterMsg("discord", "user456", "chat3")
	got := r.Route(msg)
	if got.Kind != RoutingCatchAll || got.AgentID != "default-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteNoMatchNoCatchAll(t *testing.T) {
	r := NewRoutingTable(AgentRoutingConfig{
		Routes: []AgentRoute{
			{
				Channel:       "telegram",
				MatchCriteria: MatchCriteria{UserID: strptr("user123")},
				Agent:         "work-agent",
			},
		},
	})
	msg := makeRouterMsg("discord", "user456", "chat3")
	got := r.Route(msg)
	if got.Kind != RoutingNoMatch {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteAnonymousToCatchAll(t *testing.T) {
	r := makeTestRoutingTable()
	msg := makeRouterMsg("telegram", "", "chat1")
	got := r.Route(msg)
	if got.Kind != RoutingCatchAll || got.AgentID != "default-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteAnonymousNoCatchAll(t *testing.T) {
	r := EmptyRoutingTable()
	msg := makeRouterMsg("telegram", "", "chat1")
	got := r.Route(msg)
	if got.Kind != RoutingNoMatch {
		t.Fatalf("got %+v", got)
	}
}

func TestRouteWrongChannelNoMatch(t *testing.T) {
	r := makeTestRoutingTable()
	// user123 exists but on telegram, not discord.
	msg := makeRouterMsg("discord", "user123", "chat1")
	got := r.Route(msg)
	if got.Kind != RoutingCatchAll || got.AgentID != "default-agent" {
		t.Fatalf("got %+v", got)
	}
}

func TestEmptyRouter(t *testing.T) {
	r := EmptyRoutingTable()
	if r.RouteCount() != 0 {
		t.Fatalf("expected 0 routes, got %d", r.RouteCount())
	}
	if r.HasCatchAll() {
		t.Fatal("expected no catch-all")
	}
}

func TestRouterWithCatchAllOnly(t *testing.T) {
	r := RoutingTableWithCatchAll("fallback")
	msg := makeRouterMsg("any", "user", "chat")
	got := r.Route(msg)
	if got.Kind != RoutingCatchAll || got.AgentID != "fallback" {
		t.Fatalf("got %+v", got)
	}
}
