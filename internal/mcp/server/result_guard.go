package server

import (
	"context"

	"github.com/weave-logic-ai/clawft/internal/security"
)

// ResultGuard truncates successful call results to MaxBytes using the
// same shrink-to-fit rules applied to tool results served to the LLM.
// Zero MaxBytes disables truncation.
type ResultGuard struct {
	MaxBytes int
}

// Middleware returns this guard as a chain Middleware.
func (g *ResultGuard) Middleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (*Result, error) {
			result, err := next(ctx, call)
			if err != nil || result == nil || result.IsError || g.MaxBytes <= 0 {
				return result, err
			}
			truncated := security.TruncateResult(result.Text, g.MaxBytes)
			if s, ok := truncated.(string); ok {
				return &Result{Text: s, IsError: result.IsError}, nil
			}
			return result, nil
		}
	}
}
