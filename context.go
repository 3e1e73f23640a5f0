package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/tenant"
)

type clientIPContextKey struct{}
type sessionContextKey struct{}
type scopeContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Audit events read it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithSession attaches the verified session of the current request.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session attached by [WithSession].
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}

// WithScope attaches the resolved tenant scope of the current request.
func WithScope(ctx context.Context, s tenant.Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// ScopeFromContext returns the scope attached by [WithScope].
func ScopeFromContext(ctx context.Context) (tenant.Scope, bool) {
	if ctx == nil {
		return tenant.Scope{}, false
	}
	s, ok := ctx.Value(scopeContextKey{}).(tenant.Scope)
	return s, ok
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
