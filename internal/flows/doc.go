// Package flows contains the login orchestrator behind Engine.Authorize.
//
// RunAuthorize takes a typed dependency struct and returns a result without
// side effects beyond those dependencies, so the whole state machine is unit
// tested with fakes.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Perform I/O directly; the limiter, store, hasher and mail sender are
//     all reached through the deps struct.
package flows
