package tenant

import (
	"strings"
	"time"
)

// Actor is the part of a session the resolver reads.
type Actor struct {
	AccountID string
	Role      string
	TenantID  string
}

// Override is an explicit, short-lived tenant selection made by a platform
// operator. It lives outside the signed session and is bound to one account.
type Override struct {
	AccountID string
	TenantID  string
	ExpiresAt time.Time
}

// Capability decides whether an actor may operate at platform level.
type Capability func(Actor) bool

// RoleCapability grants the platform capability to the given roles.
func RoleCapability(roles ...string) Capability {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(strings.TrimSpace(r))] = struct{}{}
	}
	return func(a Actor) bool {
		_, ok := allowed[strings.ToUpper(strings.TrimSpace(a.Role))]
		return ok
	}
}

// Resolver derives the active tenant scope for an actor.
type Resolver struct {
	isPlatformOperator Capability
	now                func() time.Time
}

// NewResolver creates a [Resolver]. now may be nil.
func NewResolver(isPlatformOperator Capability, now func() time.Time) *Resolver {
	if isPlatformOperator == nil {
		isPlatformOperator = func(Actor) bool { return false }
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{isPlatformOperator: isPlatformOperator, now: now}
}

// IsPlatformOperator reports whether a may select other tenants.
func (r *Resolver) IsPlatformOperator(a Actor) bool {
	return r.isPlatformOperator(a)
}

// Resolve returns the scope a acts in. Ordinary actors always get their own
// tenant and any override is ignored. Platform operators get a valid override
// bound to their account, otherwise their own tenant, otherwise the platform
// scope.
func (r *Resolver) Resolve(a Actor, o *Override) Scope {
	if !r.isPlatformOperator(a) {
		return ForTenant(a.TenantID)
	}
	if r.usable(a, o) {
		return ForTenant(o.TenantID)
	}
	if a.TenantID != "" {
		return ForTenant(a.TenantID)
	}
	return PlatformScope()
}

func (r *Resolver) usable(a Actor, o *Override) bool {
	if o == nil || o.TenantID == "" {
		return false
	}
	if o.AccountID != a.AccountID {
		return false
	}
	return o.ExpiresAt.IsZero() || r.now().Before(o.ExpiresAt)
}
