package goGuard

import (
	"context"

	"github.com/MrEthical07/goGuard/internal/flows"
)

// SubmitNewPassword sets a new password for the session's account and clears
// the forced-reset flag. The returned login carries a fresh session, so the
// reset gate stops triggering without another login.
func (e *Engine) SubmitNewPassword(ctx context.Context, s *Session, newPassword string) (*LoginResult, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil {
		return nil, ErrUnauthorized
	}
	if !flows.ValidPassword(newPassword, e.config.Password.MinLength) {
		e.emitAudit(ctx, auditEntry{
			Action:   ActionPasswordChange,
			ActorID:  s.AccountID,
			TenantID: s.TenantID,
			Resource: "Account",
			Err:      ErrPasswordPolicy,
		})
		return nil, ErrPasswordPolicy
	}

	a, err := e.findAccount(ctx, s.AccountID)
	if err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := e.accounts.UpdatePassword(ctx, a.ID, hash, false); err != nil {
		return nil, err
	}
	a.MustResetPassword = false

	perms, err := e.EffectivePermissions(ctx, a)
	if err != nil {
		return nil, err
	}
	token, issued, err := e.sessions.Issue(Session{
		AccountID:   a.ID,
		Role:        a.Role,
		TenantID:    a.TenantID,
		Permissions: perms,
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricPasswordChanged)
	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionPasswordChange,
		ActorID:    a.ID,
		TenantID:   a.TenantID,
		Resource:   "Account",
		ResourceID: a.ID,
		Success:    true,
		Details:    map[string]string{"forced": boolString(s.MustResetPassword)},
	})
	return &LoginResult{Token: token, Session: issued}, nil
}
