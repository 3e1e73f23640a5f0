package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/mail"
	"github.com/MrEthical07/goGuard/permission"
	"go.uber.org/zap"
)

// Authorize runs one login attempt for the client identified by clientKey
// (normally its IP address). code is empty on the first attempt.
//
// Errors are ErrRateLimited, ErrInvalidInput, ErrInvalidCredentials,
// ErrTwoFactorRequired and ErrTwoFactorInvalid; anything else is internal.
// ErrTwoFactorRequired means a code was mailed and the same credentials
// should be resubmitted with it.
func (e *Engine) Authorize(ctx context.Context, clientKey, email, password, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
		}
	}()

	res, err := flows.RunAuthorize(ctx, flows.AuthorizeRequest{
		ClientKey: clientKey,
		Email:     email,
		Password:  password,
		Code:      code,
	}, e.authorizeDeps())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: res.Token, Session: res.Session}, nil
}

func (e *Engine) authorizeDeps() flows.AuthorizeDeps {
	deps := flows.AuthorizeDeps{
		MinPasswordLength: e.config.Password.MinLength,
		FailClosed:        e.config.RateLimit.FailClosed,
		UpgradeOnLogin:    e.config.Password.UpgradeOnLogin,
		Now:               e.now,
		Metrics: flows.AuthorizeMetrics{
			LoginSuccess:      int(MetricLoginSuccess),
			LoginFailure:      int(MetricLoginFailure),
			LoginRateLimited:  int(MetricLoginRateLimited),
			LoginInvalidInput: int(MetricLoginInvalidInput),
			TwoFactorRequired: int(MetricTwoFactorRequired),
			TwoFactorInvalid:  int(MetricTwoFactorInvalid),
			SessionIssued:     int(MetricSessionIssued),
			RateLimiterError:  int(MetricRateLimiterError),
		},
		Events: flows.AuthorizeEvents{
			Login:              ActionLogin,
			LoginFailed:        ActionLoginFailed,
			LoginRateLimited:   ActionLoginRateLimited,
			TwoFactorChallenge: ActionTwoFactorChallenge,
		},
		Errors: flows.AuthorizeErrors{
			EngineNotReady:     ErrEngineNotReady,
			RateLimited:        ErrRateLimited,
			InvalidInput:       ErrInvalidInput,
			InvalidCredentials: ErrInvalidCredentials,
			TwoFactorRequired:  ErrTwoFactorRequired,
			TwoFactorInvalid:   ErrTwoFactorInvalid,
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		Audit: func(ctx context.Context, r flows.AuditRecord) {
			e.emitAudit(ctx, auditEntry{
				Action:   r.Action,
				ActorID:  r.ActorID,
				TenantID: r.TenantID,
				Resource: "Session",
				Success:  r.Success,
				Err:      r.Err,
				Details:  r.Details,
			})
		},
		Warn: func(msg string, err error) {
			e.logger.Warn(msg, zap.Error(err))
		},
		SendCode: func(email, code string) {
			e.sendMail(mail.TwoFactorCode(email, code))
		},
		EffectivePermissions: func(ctx context.Context, a *credstore.Account) (permission.Set, error) {
			return e.EffectivePermissions(ctx, a)
		},
		IssueSession: e.sessions.Issue,
		FindAccount:  e.accounts.FindByEmail,
	}

	if e.limiter != nil {
		deps.Allow = e.limiter.Allow
	}
	if e.hasher != nil {
		deps.VerifyPassword = e.hasher.Verify
		deps.BurnPassword = e.hasher.Burn
		deps.NeedsUpgrade = e.hasher.NeedsUpgrade
		deps.HashPassword = e.hasher.Hash
		deps.UpdatePasswordHash = e.accounts.UpdatePassword
	}
	if e.totp != nil {
		deps.EnsureTOTPSecret = e.ensureTOTPSecret
		deps.CurrentCode = e.totp.CurrentCode
		deps.VerifyCode = e.totp.VerifyCode
	}
	return deps
}

// ensureTOTPSecret returns the account's secret. An account flagged for 2FA
// without a secret (an import, or a toggle made outside the engine) gets one
// generated and stored here; failing to do so fails the login.
func (e *Engine) ensureTOTPSecret(ctx context.Context, a *credstore.Account) ([]byte, error) {
	if len(a.TOTPSecret) > 0 {
		return a.TOTPSecret, nil
	}
	raw, _, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.accounts.SetTOTP(ctx, a.ID, raw, true); err != nil {
		return nil, err
	}
	a.TOTPSecret = raw
	return raw, nil
}
