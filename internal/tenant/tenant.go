// Package tenant resolves the caller's tenant from the request context.
//
// Resolution order:
//  1. an authenticated-identity claim (WithClaims)
//  2. a session value set explicitly by a trusted caller (WithSession)
//  3. nothing, which yields domain.NoTenant
//
// With no tenant, only shared documents are visible. Authentication
// happens elsewhere; this package only carries its result.
package tenant

import (
	"context"
	"strings"
	"sync"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

type claimsKey struct{}
type sessionKey struct{}
type trustedKey struct{}

// Claims is the identity established by an authenticator.
type Claims struct {
	Subject  string
	TenantID string
}

// WithClaims attaches authenticated claims to ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims attached to ctx, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// Session holds the explicit tenant value for one connection.
// It is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	tenantID string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Set stores the tenant id. Surrounding whitespace is trimmed.
func (s *Session) Set(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantID = strings.TrimSpace(tenantID)
}

// Clear removes the tenant id.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantID = ""
}

// Get returns the tenant id, or "" when unset.
func (s *Session) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantID
}

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached to ctx, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// WithTrusted marks ctx as belonging to a trusted service caller.
func WithTrusted(ctx context.Context) context.Context {
	return context.WithValue(ctx, trustedKey{}, true)
}

// IsTrusted reports whether ctx belongs to a trusted service caller.
func IsTrusted(ctx context.Context) bool {
	v, _ := ctx.Value(trustedKey{}).(bool)
	return v
}

// Resolve returns the caller's tenant scope.
func Resolve(ctx context.Context) domain.TenantScope {
	if c, ok := ClaimsFromContext(ctx); ok && c.TenantID != "" {
		return domain.ForTenant(c.TenantID, domain.TenantFromClaim)
	}
	if s, ok := SessionFromContext(ctx); ok {
		if id := s.Get(); id != "" {
			return domain.ForTenant(id, domain.TenantFromSession)
		}
	}
	return domain.NoTenant
}
