// Package goGuard is the access control and tenant isolation core of a
// multi-tenant workforce application: rate-limited password login with an
// emailed second factor, permission resolution, tenant scoping of every
// data operation, and the request gate in front of it all.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Engine], [Builder], [Config], the
// error taxonomy and value types. The login state machine, rate limiting and
// audit dispatch live under internal/. Leaf packages (permission, tenant,
// query, credstore, session, password, mail) never import goGuard.
//
// # Sessions
//
// A session token is a signed snapshot of account, role, tenant, effective
// permissions and the forced-reset flag taken at login. It is not refreshed
// when a role template changes; the new set applies from the next login.
//
// # Tenants
//
// Every operation on a partitioned entity goes through [Engine.ExecutorFor]
// with the scope from [Engine.ResolveTenant]. Reads, updates and deletes are
// filtered to the scope's tenant and creates are stamped with it. Writes with
// no tenant fail with [ErrConfiguration].
package goGuard
