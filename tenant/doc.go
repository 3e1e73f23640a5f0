// Package tenant derives the active tenant for a request and enforces
// row-level tenant isolation on every data operation.
//
// # Isolation
//
// For a partitioned entity and a resolved tenant T the [Interceptor] rewrites:
//
//	reads, updates, deletes:  WHERE ... AND tenant_id = T
//	creates (single, bulk):   SET tenant_id = T, overriding the payload
//	updates, upserts:         payload tenant_id pinned to T
//
// A conflicting caller filter (tenant_id = other) still gets the extra
// condition, so the conjunction matches nothing and the lookup is not-found.
// Writes without a tenant fail with [ErrConfiguration]; reads without a
// tenant are permitted only for the platform scope.
//
// Child records are scoped by their own tenant_id column, never transitively
// through a parent. Every partitioned entity is listed in the [Catalog].
//
// # What this package must NOT do
//
//   - Evaluate permissions.
//   - Silently widen a missing tenant to "all tenants".
package tenant
