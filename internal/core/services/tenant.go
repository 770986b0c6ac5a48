package services

import (
	"context"
	"strings"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// Ensure TenantService implements the interface.
var _ driving.TenantService = (*TenantService)(nil)

// TenantService manages the explicit session tenant.
type TenantService struct{}

// NewTenantService creates a tenant service.
func NewTenantService() *TenantService {
	return &TenantService{}
}

// SetTenantContext sets the session tenant. Only trusted callers may do so.
func (s *TenantService) SetTenantContext(ctx context.Context, tenantID string) error {
	sess, err := trustedSession(ctx)
	if err != nil {
		return err
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.NewValidationError("tenant_id", "must not be blank")
	}
	sess.Set(tenantID)
	logger.Debug("tenant context set to %q", tenantID)
	return nil
}

// ClearTenantContext removes the session tenant.
func (s *TenantService) ClearTenantContext(ctx context.Context) error {
	sess, err := trustedSession(ctx)
	if err != nil {
		return err
	}
	sess.Clear()
	logger.Debug("tenant context cleared")
	return nil
}

// CurrentTenant resolves the caller's tenant.
func (s *TenantService) CurrentTenant(ctx context.Context) domain.TenantScope {
	return tenant.Resolve(ctx)
}

func trustedSession(ctx context.Context) (*tenant.Session, error) {
	if !tenant.IsTrusted(ctx) {
		return nil, domain.ErrForbidden
	}
	sess, ok := tenant.SessionFromContext(ctx)
	if !ok {
		return nil, domain.NewValidationError("session", "no session attached")
	}
	return sess, nil
}
