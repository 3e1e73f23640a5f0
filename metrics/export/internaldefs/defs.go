package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter with its exported name.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricLoginSuccess, Name: "goguard_login_success_total", Help: "Successful logins."},
	{ID: goGuard.MetricLoginFailure, Name: "goguard_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: goGuard.MetricLoginRateLimited, Name: "goguard_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: goGuard.MetricLoginInvalidInput, Name: "goguard_login_invalid_input_total", Help: "Logins rejected for malformed input."},
	{ID: goGuard.MetricTwoFactorRequired, Name: "goguard_two_factor_required_total", Help: "Logins answered with a two-factor challenge."},
	{ID: goGuard.MetricTwoFactorInvalid, Name: "goguard_two_factor_invalid_total", Help: "Rejected two-factor codes."},
	{ID: goGuard.MetricSessionIssued, Name: "goguard_session_issued_total", Help: "Issued session tokens."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Logouts."},
	{ID: goGuard.MetricUnauthorized, Name: "goguard_unauthorized_total", Help: "Failed permission checks."},
	{ID: goGuard.MetricTenantScopeViolation, Name: "goguard_tenant_scope_violation_total", Help: "Operations that escaped their tenant boundary."},
	{ID: goGuard.MetricConfigurationError, Name: "goguard_configuration_error_total", Help: "Partitioned writes without a tenant."},
	{ID: goGuard.MetricPasswordChanged, Name: "goguard_password_changed_total", Help: "Completed password changes."},
	{ID: goGuard.MetricAdminChange, Name: "goguard_admin_change_total", Help: "Role, permission, template and two-factor changes."},
	{ID: goGuard.MetricTenantOverride, Name: "goguard_tenant_override_total", Help: "Tenant overrides issued to platform operators."},
	{ID: goGuard.MetricRateLimiterError, Name: "goguard_rate_limiter_error_total", Help: "Rate limiter backend errors."},
	{ID: goGuard.MetricMailFailure, Name: "goguard_mail_failure_total", Help: "Failed mail deliveries."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricAuthorizeLatency, Name: "goguard_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// NormalizeBuckets pads or truncates raw to the engine bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
