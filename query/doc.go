// Package query defines the generic data operation model that every data
// access in goGuard is expressed in: an entity name, an operation kind and its
// arguments (filter conditions and record payloads).
//
// Backends implement [Executor]. Package tenant wraps an Executor so every
// operation against a tenant-partitioned entity is rewritten before it runs.
//
// # What this package must NOT do
//
//   - Know which entities are tenant-partitioned.
//   - Import goGuard or tenant.
package query
