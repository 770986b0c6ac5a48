package driving

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// TenantService manages the session tenant for trusted callers.
type TenantService interface {
	// SetTenantContext sets the session tenant.
	// Returns domain.ErrForbidden for untrusted callers.
	SetTenantContext(ctx context.Context, tenantID string) error

	// ClearTenantContext clears the session tenant.
	// Returns domain.ErrForbidden for untrusted callers.
	ClearTenantContext(ctx context.Context) error

	// CurrentTenant returns the resolved scope of the caller.
	CurrentTenant(ctx context.Context) domain.TenantScope
}
