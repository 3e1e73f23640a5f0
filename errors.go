package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/tenant"
)

var (
	// ErrRateLimited is returned when a client key exhausted its login attempts.
	// It is returned before any account lookup.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrInvalidInput is returned for a malformed email or a short password.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTwoFactorRequired is a control-flow signal: resubmit the same
	// credentials with the code that was just sent.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	ErrTwoFactorInvalid  = errors.New("invalid two-factor code")
	// ErrUnauthorized is a failed permission check on an authenticated actor.
	ErrUnauthorized = errors.New("unauthorized")

	ErrTenantScopeViolation = tenant.ErrScopeViolation
	ErrConfiguration        = tenant.ErrConfiguration

	ErrNotFound        = errors.New("not found")
	ErrEngineNotReady  = errors.New("engine not initialized")
	ErrPasswordPolicy  = errors.New("password policy violation")
	ErrTOTPNotEnrolled = errors.New("totp enrollment not started")
	ErrUnknownRole     = errors.New("unknown role")
)

// Kind is an error category. Callers branch on the kind, not on messages.
type Kind string

const (
	KindNone                 Kind = ""
	KindRateLimited          Kind = "RateLimited"
	KindInvalidInput         Kind = "InvalidInput"
	KindInvalidCredentials   Kind = "InvalidCredentials"
	KindTwoFactorRequired    Kind = "TwoFactorRequired"
	KindTwoFactorInvalid     Kind = "TwoFactorInvalid"
	KindUnauthorized         Kind = "Unauthorized"
	KindTenantScopeViolation Kind = "TenantScopeViolation"
	KindConfiguration        Kind = "ConfigurationError"
	KindNotFound             Kind = "NotFound"
	KindInternal             Kind = "Internal"
)

// ErrorKind maps err to its category.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrUnknownRole):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrTwoFactorRequired):
		return KindTwoFactorRequired
	case errors.Is(err, ErrTwoFactorInvalid), errors.Is(err, ErrTOTPNotEnrolled):
		return KindTwoFactorInvalid
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTenantScopeViolation):
		return KindTenantScopeViolation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// PublicMessage returns the text an end user may see for err. Scope,
// configuration and unexpected errors collapse to a generic message; their
// detail belongs in the server log.
func PublicMessage(err error) string {
	if errors.Is(err, ErrPasswordPolicy) {
		return "The new password does not meet the password policy."
	}
	switch ErrorKind(err) {
	case KindNone:
		return ""
	case KindRateLimited:
		return "Too many login attempts. Please try again later."
	case KindInvalidInput:
		return "Please check the email address and password you entered."
	case KindInvalidCredentials:
		return "Invalid email or password."
	case KindTwoFactorRequired:
		return "Enter the verification code sent to your email."
	case KindTwoFactorInvalid:
		return "The verification code is invalid or has expired."
	case KindUnauthorized:
		return "You do not have permission to perform this action."
	case KindNotFound:
		return "Not found."
	default:
		return "Request failed."
	}
}
