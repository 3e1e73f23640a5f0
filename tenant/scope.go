package tenant

// Scope is the resolved tenant context of an actor.
//
// TenantID empty with Platform set is the tenant-agnostic platform scope of a
// platform operator. TenantID empty without Platform is unresolvable and every
// partitioned operation under it fails closed.
type Scope struct {
	TenantID string
	Platform bool
}

// ForTenant returns the scope of a single tenant.
func ForTenant(tenantID string) Scope {
	return Scope{TenantID: tenantID}
}

// PlatformScope returns the tenant-agnostic platform scope.
func PlatformScope() Scope {
	return Scope{Platform: true}
}

// HasTenant reports whether a concrete tenant is selected.
func (s Scope) HasTenant() bool {
	return s.TenantID != ""
}

// String renders the scope for logs.
func (s Scope) String() string {
	switch {
	case s.HasTenant():
		return "tenant:" + s.TenantID
	case s.Platform:
		return "platform"
	default:
		return "unresolved"
	}
}
