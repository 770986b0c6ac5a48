package domain

// TenantSource records where a resolved tenant came from.
type TenantSource string

const (
	// TenantFromClaim is an authenticated-identity claim.
	TenantFromClaim TenantSource = "claim"
	// TenantFromSession is an explicitly set session value.
	TenantFromSession TenantSource = "session"
	// TenantNone means no tenant could be resolved.
	TenantNone TenantSource = "none"
)

// TenantScope is the caller's resolved tenant.
//
// When no tenant is set, only shared documents (nil TenantID) are
// visible. An unset scope is never an administrative bypass.
type TenantScope struct {
	ID     string
	Set    bool
	Source TenantSource
}

// NoTenant is the scope used when nothing could be resolved.
var NoTenant = TenantScope{Source: TenantNone}

// ForTenant returns a scope bound to id. An empty id yields NoTenant.
func ForTenant(id string, source TenantSource) TenantScope {
	if id == "" {
		return NoTenant
	}
	return TenantScope{ID: id, Set: true, Source: source}
}

// Visible applies the tenant predicate: shared rows are always visible,
// owned rows only to their tenant.
func (s TenantScope) Visible(tenantID *string) bool {
	if tenantID == nil {
		return true
	}
	return s.Set && *tenantID == s.ID
}

// String returns the tenant id or "<none>".
func (s TenantScope) String() string {
	if !s.Set {
		return "<none>"
	}
	return s.ID
}
