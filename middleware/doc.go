// Package middleware exposes the HTTP request gate built on goGuard.Engine.
//
// # Guards
//
//   - [Guard] authenticates the request from the session cookie or a bearer
//     token, redirects anonymous requests to the login page, and enforces
//     the forced password reset.
//   - [RequirePermission] checks one permission against the session snapshot.
//   - [Throttle] is a per-client token bucket for public endpoints.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token
// verification, tenant resolution and permission checks are delegated to the
// Engine; the guard only decides between pass, redirect and reject.
package middleware
