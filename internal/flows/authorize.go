package flows

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/session"
)

// maxPasswordBytes bounds the work a single login can ask of the hasher.
const maxPasswordBytes = 1024

// AuthorizeRequest is one login attempt.
type AuthorizeRequest struct {
	ClientKey string
	Email     string
	Password  string
	// Code is the emailed one-time code. Empty on the first step.
	Code string
}

// AuthorizeResult is a successful login.
type AuthorizeResult struct {
	Token   string
	Session session.Session
}

// AuthorizeMetrics carries metric IDs needed by the authorize flow.
type AuthorizeMetrics struct {
	LoginSuccess      int
	LoginFailure      int
	LoginRateLimited  int
	LoginInvalidInput int
	TwoFactorRequired int
	TwoFactorInvalid  int
	SessionIssued     int
	RateLimiterError  int
}

// AuthorizeEvents carries audit action names used by the authorize flow.
type AuthorizeEvents struct {
	Login              string
	LoginFailed        string
	LoginRateLimited   string
	TwoFactorChallenge string
}

// AuthorizeErrors carries host-level sentinel errors used by the authorize flow.
type AuthorizeErrors struct {
	EngineNotReady     error
	RateLimited        error
	InvalidInput       error
	InvalidCredentials error
	TwoFactorRequired  error
	TwoFactorInvalid   error
}

// AuditRecord is the flow-local audit shape. The engine fills in timestamp,
// severity and IP.
type AuditRecord struct {
	Action   string
	ActorID  string
	TenantID string
	Success  bool
	Err      error
	Details  map[string]string
}

// AuthorizeDeps captures authorize dependencies.
type AuthorizeDeps struct {
	MinPasswordLength int
	FailClosed        bool
	UpgradeOnLogin    bool

	Now func() time.Time

	Allow func(context.Context, string) (bool, error)

	FindAccount        func(context.Context, string) (*credstore.Account, error)
	VerifyPassword     func(string, string) (bool, error)
	BurnPassword       func(string)
	NeedsUpgrade       func(string) (bool, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string, bool) error

	// EnsureTOTPSecret returns the account secret, creating and storing one
	// when the account has 2FA on but no secret yet.
	EnsureTOTPSecret func(context.Context, *credstore.Account) ([]byte, error)
	CurrentCode      func([]byte, time.Time) (string, error)
	VerifyCode       func([]byte, string, time.Time) (bool, error)
	SendCode         func(email, code string)

	EffectivePermissions func(context.Context, *credstore.Account) (permission.Set, error)
	IssueSession         func(session.Session) (string, session.Session, error)

	MetricInc func(int)
	Audit     func(context.Context, AuditRecord)
	Warn      func(string, error)

	Metrics AuthorizeMetrics
	Events  AuthorizeEvents
	Errors  AuthorizeErrors
}

// RunAuthorize executes one login attempt.
//
// The order is fixed: rate limit, input shape, account lookup, password,
// second factor. A missing account and a wrong password produce the same
// error and roughly the same hashing cost. A 2FA account without a code gets
// a fresh code mailed and Errors.TwoFactorRequired; the caller resubmits the
// full credentials with the code, which are checked again from scratch.
func RunAuthorize(ctx context.Context, req AuthorizeRequest, deps AuthorizeDeps) (*AuthorizeResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Audit == nil {
		deps.Audit = func(context.Context, AuditRecord) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}
	if deps.SendCode == nil {
		deps.SendCode = func(string, string) {}
	}
	if deps.BurnPassword == nil {
		deps.BurnPassword = func(string) {}
	}
	if deps.Allow == nil ||
		deps.FindAccount == nil ||
		deps.VerifyPassword == nil ||
		deps.EnsureTOTPSecret == nil ||
		deps.CurrentCode == nil ||
		deps.VerifyCode == nil ||
		deps.EffectivePermissions == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	allowed, err := deps.Allow(ctx, req.ClientKey)
	if err != nil {
		deps.MetricInc(deps.Metrics.RateLimiterError)
		deps.Warn("rate limiter unavailable", err)
		allowed = !deps.FailClosed
	}
	if !allowed {
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		deps.Audit(ctx, AuditRecord{
			Action: deps.Events.LoginRateLimited,
			Err:    deps.Errors.RateLimited,
		})
		return nil, deps.Errors.RateLimited
	}

	email := credstore.NormalizeEmail(req.Email)
	if !validEmail(email) || !validPassword(req.Password, deps.MinPasswordLength) {
		deps.MetricInc(deps.Metrics.LoginInvalidInput)
		deps.Audit(ctx, AuditRecord{
			Action:  deps.Events.LoginFailed,
			Err:     deps.Errors.InvalidInput,
			Details: map[string]string{"reason": "invalid_input"},
		})
		return nil, deps.Errors.InvalidInput
	}

	account, err := deps.FindAccount(ctx, email)
	if err != nil || account == nil {
		if err != nil && !errors.Is(err, credstore.ErrNotFound) {
			deps.Warn("account lookup failed", err)
		}
		deps.BurnPassword(req.Password)
		return nil, loginFailed(ctx, deps, "", "", "unknown_account", deps.Errors.InvalidCredentials)
	}

	ok, err := deps.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil || !ok {
		return nil, loginFailed(ctx, deps, account.ID, account.TenantID, "password_mismatch", deps.Errors.InvalidCredentials)
	}

	if account.TOTPEnabled {
		secret, err := deps.EnsureTOTPSecret(ctx, account)
		if err != nil {
			return nil, err
		}
		now := deps.Now()

		if strings.TrimSpace(req.Code) == "" {
			code, err := deps.CurrentCode(secret, now)
			if err != nil {
				return nil, err
			}
			deps.SendCode(account.Email, code)
			deps.MetricInc(deps.Metrics.TwoFactorRequired)
			deps.Audit(ctx, AuditRecord{
				Action:   deps.Events.TwoFactorChallenge,
				ActorID:  account.ID,
				TenantID: account.TenantID,
				Success:  true,
			})
			return nil, deps.Errors.TwoFactorRequired
		}

		valid, err := deps.VerifyCode(secret, req.Code, now)
		if err != nil {
			return nil, err
		}
		if !valid {
			deps.MetricInc(deps.Metrics.TwoFactorInvalid)
			return nil, loginFailed(ctx, deps, account.ID, account.TenantID, "two_factor_invalid", deps.Errors.TwoFactorInvalid)
		}
	}

	if deps.UpgradeOnLogin && deps.NeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needs, err := deps.NeedsUpgrade(account.PasswordHash); err == nil && needs {
			if upgraded, err := deps.HashPassword(req.Password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, account.ID, upgraded, account.MustResetPassword); err != nil {
					deps.Warn("password hash upgrade failed", err)
				}
			}
		}
	}

	perms, err := deps.EffectivePermissions(ctx, account)
	if err != nil {
		return nil, err
	}

	token, issued, err := deps.IssueSession(session.Session{
		AccountID:         account.ID,
		Role:              account.Role,
		TenantID:          account.TenantID,
		Permissions:       perms,
		MustResetPassword: account.MustResetPassword,
	})
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.Audit(ctx, AuditRecord{
		Action:   deps.Events.Login,
		ActorID:  account.ID,
		TenantID: account.TenantID,
		Success:  true,
		Details: map[string]string{
			"session_id": issued.ID,
			"two_factor": boolString(account.TOTPEnabled),
		},
	})

	return &AuthorizeResult{Token: token, Session: issued}, nil
}

func loginFailed(ctx context.Context, deps AuthorizeDeps, accountID, tenantID, reason string, err error) error {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.Audit(ctx, AuditRecord{
		Action:   deps.Events.LoginFailed,
		ActorID:  accountID,
		TenantID: tenantID,
		Err:      err,
		Details:  map[string]string{"reason": reason},
	})
	return err
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// ValidEmail reports whether email is a bare, normalized address with a
// dotted domain.
func ValidEmail(email string) bool {
	return validEmail(email)
}

// ValidPassword reports whether password meets the length policy.
func ValidPassword(password string, minLength int) bool {
	return validPassword(password, minLength)
}

func validPassword(password string, minLength int) bool {
	if len(password) > maxPasswordBytes {
		return false
	}
	return utf8.RuneCountInString(password) >= minLength
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
