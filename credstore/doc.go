// Package credstore holds accounts and role templates: password hashes, TOTP
// secrets and flags, role names, per-account permission overrides and tenant
// identifiers.
//
// Lookups are keyed by globally unique account id or by case-insensitive
// email. Tenant scoping of generic data access is the job of package tenant;
// this store is the credential leaf that login and administration read from.
package credstore
