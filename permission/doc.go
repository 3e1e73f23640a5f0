// Package permission provides the permission catalog, flat permission sets, the
// static per-role defaults and the resolver that computes an account's
// effective permissions.
//
// # Resolution
//
// Effective permissions come from exactly one [Source]:
//
//	Custom   - a per-account override (an empty set means "no permissions")
//	Template - the tenant's role template for the account's role
//	Default  - the built-in default set for the role (empty if unknown)
//
// The first available source wins. Sources are never merged.
//
// # What this package must NOT do
//
//   - Cache resolved sets. Callers needing live values re-invoke the resolver.
//   - Import goGuard, session, or tenant.
//   - Treat permission tokens as hierarchical.
package permission
