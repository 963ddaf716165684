package server

import (
	"context"

	"github.com/weave-logic-ai/clawft/internal/security"
)

// SecurityGuard consults a CommandPolicy and UrlPolicy before letting a
// call through: a call whose arguments carry a "command" or "url"
// field is validated against the respective policy; on violation the
// call is not dispatched and the guard returns a Result with IsError
// set and the policy error's text. Calls with neither field pass
// through untouched.
type SecurityGuard struct {
	CommandPolicy *security.CommandPolicy
	UrlPolicy     *security.UrlPolicy
}

// Middleware returns this guard as a chain Middleware.
func (g *SecurityGuard) Middleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (*Result, error) {
			if g.CommandPolicy != nil {
				if cmd, ok := call.Args["command"].(string); ok && cmd != "" {
					if err := g.CommandPolicy.Validate(cmd); err != nil {
						return &Result{Text: err.Error(), IsError: true}, nil
					}
				}
			}
			if g.UrlPolicy != nil {
				if url, ok := call.Args["url"].(string); ok && url != "" {
					if err := g.UrlPolicy.Validate(url); err != nil {
						return &Result{Text: err.Error(), IsError: true}, nil
					}
				}
			}
			return next(ctx, call)
		}
	}
}
