// Package server exposes clawft's own tool catalogue to external MCP
// clients over stdio, wrapping a CompositeProvider in an ordered
// middleware chain.
package server

import "context"

// Call describes one incoming tools/call request as it moves through
// the middleware chain.
type Call struct {
	ToolName  string
	Args      map[string]interface{}
	Principal string // optional caller identity, for PermissionFilter
}

// Outcome is what happened to a Call — used by AuditLog to record
// success/denied/error uniformly regardless of which stage decided it.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDenied
	OutcomeError
)

// Result is what a middleware chain (or the final dispatch) returns.
type Result struct {
	Text    string
	IsError bool
}

// Handler executes a Call and returns its Result.
type Handler func(ctx context.Context, call Call) (*Result, error)

// Middleware wraps a Handler to observe or modify a Call/Result.
type Middleware func(next Handler) Handler

// Chain composes middlewares around a terminal handler. The first
// middleware in the list is the outermost — it runs first and sees the
// final return value last.
func Chain(terminal Handler, mws ...Middleware) Handler {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
