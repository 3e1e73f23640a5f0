// Package rate provides the fixed-window attempt limiter that gates login.
//
// # Window semantics
//
// Each client key owns a window {count, resetAt}. The first attempt opens the
// window with count 1; attempts are allowed while count < MaxAttempts; once
// now > resetAt the next attempt opens a fresh window. An empty client key is
// exempt and always allowed.
//
// Two backends implement [Limiter]:
//   - [Memory]: process-local map behind a mutex. Lost on restart.
//   - [Redis]: INCR with PEXPIRE on first hit in one Lua script, shared across
//     instances. Keys live under "goguard:login:".
//
// Both are best-effort abuse mitigation, not a strict distributed guarantee.
//
// # What this package must NOT do
//
//   - Look up accounts or know about credentials.
//   - Be imported outside the goGuard module.
package rate
