package permission

import "context"

// TemplateLookup finds a tenant's role template. found is false when no
// template exists for (tenantID, role).
type TemplateLookup interface {
	RoleTemplate(ctx context.Context, tenantID, role string) (perms Set, found bool, err error)
}

// Subject is the slice of an account the resolver reads.
type Subject struct {
	TenantID string
	Role     string
	Custom   *Set
}

// Resolver computes effective permissions. It performs no caching.
type Resolver struct {
	templates TemplateLookup
	defaults  *RoleManager
}

// NewResolver creates a [Resolver]. templates may be nil, in which case only
// custom overrides and static defaults apply.
func NewResolver(templates TemplateLookup, defaults *RoleManager) *Resolver {
	return &Resolver{templates: templates, defaults: defaults}
}

// Resolve returns the winning source for subject. The template store is only
// consulted when no custom override is set.
func (r *Resolver) Resolve(ctx context.Context, subject Subject) (Source, error) {
	in := Input{Role: subject.Role, Custom: subject.Custom}
	if in.Custom == nil && r.templates != nil && subject.TenantID != "" {
		perms, found, err := r.templates.RoleTemplate(ctx, subject.TenantID, NormalizeRole(subject.Role))
		if err != nil {
			return nil, err
		}
		if found {
			in.Template = &perms
		}
	}
	return Select(in, r.defaults), nil
}

// Effective is Resolve reduced to the permission set.
func (r *Resolver) Effective(ctx context.Context, subject Subject) (Set, error) {
	src, err := r.Resolve(ctx, subject)
	if err != nil {
		return Set{}, err
	}
	return src.Permissions(), nil
}
