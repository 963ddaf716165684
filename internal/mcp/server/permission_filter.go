package server

import "context"

// PermissionFilter restricts which tool names a principal may call.
// An empty Allow list means "no restriction"; Deny always wins over
// Allow. A call with no Principal set (anonymous / single-tenant mode)
// is never filtered.
type PermissionFilter struct {
	Allow map[string][]string // principal -> allowed tool names
	Deny  map[string][]string // principal -> denied tool names
}

// Middleware returns this filter as a chain Middleware.
func (f *PermissionFilter) Middleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (*Result, error) {
			if call.Principal == "" {
				return next(ctx, call)
			}

			for _, denied := range f.Deny[call.Principal] {
				if denied == call.ToolName {
					return &Result{Text: "tool denied for principal: " + call.ToolName, IsError: true}, nil
				}
			}

			if allow, ok := f.Allow[call.Principal]; ok && len(allow) > 0 {
				permitted := false
				for _, name := range allow {
					if name == call.ToolName {
						permitted = true
						break
					}
				}
				if !permitted {
					return &Result{Text: "tool not in allow list: " + call.ToolName, IsError: true}, nil
				}
			}

			return next(ctx, call)
		}
	}
}
