package goGuard

import (
	"context"
	"errors"
)

// Audit actions.
const (
	ActionLogin                 = "LOGIN"
	ActionLoginFailed           = "LOGIN_FAILED"
	ActionLoginRateLimited      = "LOGIN_RATE_LIMITED"
	ActionTwoFactorChallenge    = "TWO_FACTOR_CHALLENGE"
	ActionLogout                = "LOGOUT"
	ActionRoleChange            = "ROLE_CHANGE"
	ActionPermissionOverride    = "PERMISSION_OVERRIDE"
	ActionRoleTemplateChange    = "ROLE_TEMPLATE_CHANGE"
	ActionTwoFactorToggle       = "TWO_FACTOR_TOGGLE"
	ActionPasswordChange        = "PASSWORD_CHANGE"
	ActionPasswordResetRequired = "PASSWORD_RESET_REQUIRED"
	ActionTenantOverrideSet     = "TENANT_OVERRIDE_SET"
	ActionTenantOverrideClear   = "TENANT_OVERRIDE_CLEAR"
	ActionUnauthorized          = "UNAUTHORIZED"
	ActionAccountCreated        = "ACCOUNT_CREATED"
	ActionTenantScopeViolation  = "TENANT_SCOPE_VIOLATION"
	ActionConfigurationError    = "CONFIGURATION_ERROR"
)

type auditEntry struct {
	Action     string
	ActorID    string
	TenantID   string
	Resource   string
	ResourceID string
	Success    bool
	Err        error
	Details    map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, entry auditEntry) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  e.now().UTC(),
		Action:     entry.Action,
		Severity:   severityFor(entry),
		ActorID:    entry.ActorID,
		TenantID:   entry.TenantID,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		IP:         clientIPFromContext(ctx),
		Success:    entry.Success,
		Details:    entry.Details,
	}
	if entry.Err != nil {
		event.Error = string(ErrorKind(entry.Err))
	}
	e.audit.Emit(ctx, event)
}

func severityFor(entry auditEntry) AuditSeverity {
	switch {
	case errors.Is(entry.Err, ErrTenantScopeViolation), errors.Is(entry.Err, ErrConfiguration):
		return SeverityHigh
	case entry.Action == ActionTenantOverrideSet,
		entry.Action == ActionPermissionOverride,
		entry.Action == ActionRoleChange:
		return SeverityHigh
	case entry.Action == ActionUnauthorized, entry.Action == ActionLoginRateLimited:
		return SeverityWarning
	case !entry.Success && entry.Err != nil:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
