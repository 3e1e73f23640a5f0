package goGuard

import (
	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/tenant"
)

type (
	Account        = credstore.Account
	RoleTemplate   = credstore.RoleTemplate
	AccountStore   = credstore.Store
	Session        = session.Session
	TenantOverride = tenant.Override
	Scope          = tenant.Scope
	PermissionSet  = permission.Set

	AuditEvent    = audit.Event
	AuditSink     = audit.Sink
	AuditSeverity = audit.Severity
)

// LoginResult is a successful authorization.
type LoginResult struct {
	// Token is the signed session token handed to the client.
	Token   string
	Session Session
}

// TOTPEnrollment is returned when an account starts authenticator setup.
type TOTPEnrollment struct {
	SecretBase32 string
	URI          string
}

// OverrideResult is a signed tenant override for a platform operator.
type OverrideResult struct {
	Token    string
	Override TenantOverride
}
