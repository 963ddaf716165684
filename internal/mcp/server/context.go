package server

import "context"

type contextKey string

const principalKey contextKey = "mcp_server_principal"

// WithPrincipal attaches a caller identity to ctx for PermissionFilter
// to key its allow/deny lists on.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the identity set by WithPrincipal, or
// "" when none was set (single-tenant / anonymous callers).
func PrincipalFromContext(ctx context.Context) string {
	v, _ := ctx.Value(principalKey).(string)
	return v
}
