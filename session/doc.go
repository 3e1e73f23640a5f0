// Package session issues and parses the signed session token and the signed
// tenant override token.
//
// # Snapshot semantics
//
// A session token carries {account, role, tenant, permissions,
// mustResetPassword} computed once at issuance. Nothing refreshes it: a role
// template edit becomes visible to an account only when a new token is issued
// at its next login. Nothing is stored server-side.
//
// # Token types
//
// Both tokens are JWTs signed with the same key. The "typ" claim separates
// them, so an override token is never accepted as a session and vice versa.
//
// # What this package must NOT do
//
//   - Resolve permissions or tenants; it only encodes what it is given.
//   - Store sessions.
package session
