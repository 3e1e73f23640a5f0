package goGuard

import (
	"context"
	"strings"
)

// BeginTOTPEnrollment provisions a new secret for the session's account and
// returns it with an otpauth URI for authenticator apps. The two-factor flag
// is left as it is until [Engine.ConfirmTOTPEnrollment] succeeds.
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, s *Session) (*TOTPEnrollment, error) {
	if e == nil || e.totp == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil {
		return nil, ErrUnauthorized
	}
	a, err := e.findAccount(ctx, s.AccountID)
	if err != nil {
		return nil, err
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.accounts.SetTOTP(ctx, a.ID, raw, a.TOTPEnabled); err != nil {
		return nil, err
	}

	return &TOTPEnrollment{
		SecretBase32: encoded,
		URI:          e.totp.ProvisionURI(encoded, a.Email),
	}, nil
}

// ConfirmTOTPEnrollment checks a code from the authenticator app against the
// provisioned secret and turns two-factor login on.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, s *Session, code string) error {
	if e == nil || e.totp == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if s == nil {
		return ErrUnauthorized
	}
	a, err := e.findAccount(ctx, s.AccountID)
	if err != nil {
		return err
	}
	if len(a.TOTPSecret) == 0 {
		return ErrTOTPNotEnrolled
	}

	ok, err := e.totp.VerifyCode(a.TOTPSecret, strings.TrimSpace(code), e.now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTwoFactorInvalid)
		return ErrTwoFactorInvalid
	}
	if err := e.accounts.SetTOTP(ctx, a.ID, a.TOTPSecret, true); err != nil {
		return err
	}

	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionTwoFactorToggle,
		ActorID:    a.ID,
		TenantID:   a.TenantID,
		Resource:   "Account",
		ResourceID: a.ID,
		Success:    true,
		Details:    map[string]string{"enabled": "true", "method": "authenticator"},
	})
	return nil
}
