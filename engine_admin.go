package goGuard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goGuard/credstore"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/mail"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/tenant"
	"go.uber.org/zap"
)

// NewAccount is the input of [Engine.CreateAccount].
type NewAccount struct {
	Email string
	// Password is the initial password. The account must change it at first
	// login.
	Password string
	Role     string
}

// adminScope returns the tenant an actor administers. Ordinary actors are
// pinned to their own tenant whatever the context says. Platform operators
// use the scope the request resolved (their override), else their own.
func (e *Engine) adminScope(ctx context.Context, actor *Session) Scope {
	if !e.IsPlatformOperator(actor) {
		return tenant.ForTenant(actor.TenantID)
	}
	if s, ok := ScopeFromContext(ctx); ok {
		return s
	}
	return e.tenants.Resolve(actor.Actor(), nil)
}

// adminTarget loads accountID as seen from scope. Accounts of other tenants
// do not exist from the actor's point of view.
func (e *Engine) adminTarget(ctx context.Context, scope Scope, accountID string) (*Account, error) {
	if !scope.HasTenant() && !scope.Platform {
		e.logger.Error("admin operation without tenant", zap.String("account_id", accountID), zap.String("severity", "high"))
		e.metricInc(MetricConfigurationError)
		return nil, fmt.Errorf("%w: no tenant resolved", ErrConfiguration)
	}
	a, err := e.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if scope.HasTenant() && a.TenantID != scope.TenantID {
		return nil, ErrNotFound
	}
	return a, nil
}

// authorizeAdmin is the common prologue of admin operations.
func (e *Engine) authorizeAdmin(ctx context.Context, actor *Session, perm, resource, resourceID string) (Scope, error) {
	if e == nil || e.accounts == nil {
		return Scope{}, ErrEngineNotReady
	}
	if actor == nil || !actor.Can(perm) {
		return Scope{}, e.deny(ctx, actor, perm, resource, resourceID)
	}
	return e.adminScope(ctx, actor), nil
}

// SetAccountRole changes the role of accountID. Requires users.manage. Only
// platform operators may hand out a platform role.
func (e *Engine) SetAccountRole(ctx context.Context, actor *Session, accountID, role string) error {
	scope, err := e.authorizeAdmin(ctx, actor, permission.UsersManage, "Account", accountID)
	if err != nil {
		return err
	}
	role = permission.NormalizeRole(role)
	if !e.roles.Known(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if e.tenants.IsPlatformOperator(tenant.Actor{Role: role}) && !e.IsPlatformOperator(actor) {
		return e.deny(ctx, actor, ActionRoleChange, "Account", accountID)
	}

	target, err := e.adminTarget(ctx, scope, accountID)
	if err != nil {
		return err
	}
	if err := e.accounts.SetRole(ctx, target.ID, role); err != nil {
		return err
	}

	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionRoleChange,
		ActorID:    actor.AccountID,
		TenantID:   target.TenantID,
		Resource:   "Account",
		ResourceID: target.ID,
		Success:    true,
		Details:    map[string]string{"from": target.Role, "to": role},
	})
	return nil
}

// SetCustomPermissions sets or clears the per-account override. A nil perms
// restores inheritance from the role; an empty set revokes everything.
// Requires roles.manage.
func (e *Engine) SetCustomPermissions(ctx context.Context, actor *Session, accountID string, perms *PermissionSet) error {
	scope, err := e.authorizeAdmin(ctx, actor, permission.RolesManage, "Account", accountID)
	if err != nil {
		return err
	}
	if perms != nil {
		if err := e.registry.Validate(*perms); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	target, err := e.adminTarget(ctx, scope, accountID)
	if err != nil {
		return err
	}
	if err := e.accounts.SetCustomPermissions(ctx, target.ID, perms); err != nil {
		return err
	}

	details := map[string]string{"override": "inherit"}
	if perms != nil {
		details["override"] = perms.String()
	}
	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionPermissionOverride,
		ActorID:    actor.AccountID,
		TenantID:   target.TenantID,
		Resource:   "Account",
		ResourceID: target.ID,
		Success:    true,
		Details:    details,
	})
	return nil
}

// SaveRoleTemplate replaces the actor's tenant template for role. Requires
// roles.manage and a concrete tenant: templates are never written at
// platform scope. Existing sessions keep their snapshot until next login.
func (e *Engine) SaveRoleTemplate(ctx context.Context, actor *Session, role string, perms PermissionSet) error {
	scope, err := e.authorizeAdmin(ctx, actor, permission.RolesManage, "RoleTemplate", role)
	if err != nil {
		return err
	}
	if !scope.HasTenant() {
		e.logger.Error("role template write without tenant",
			zap.String("actor_id", actor.AccountID),
			zap.String("role", role),
			zap.String("severity", "high"),
		)
		e.metricInc(MetricConfigurationError)
		return fmt.Errorf("%w: role template requires a tenant", ErrConfiguration)
	}
	role = permission.NormalizeRole(role)
	if !e.roles.Known(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err := e.registry.Validate(perms); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := e.accounts.SaveRoleTemplate(ctx, RoleTemplate{
		TenantID:    scope.TenantID,
		RoleName:    role,
		Permissions: perms,
	}); err != nil {
		return err
	}

	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionRoleTemplateChange,
		ActorID:    actor.AccountID,
		TenantID:   scope.TenantID,
		Resource:   "RoleTemplate",
		ResourceID: role,
		Success:    true,
		Details:    map[string]string{"permissions": perms.String()},
	})
	return nil
}

// SetTwoFactor turns the emailed login code on or off for accountID. An
// account may toggle its own; anyone else needs users.manage. Enabling keeps
// an existing secret or provisions one; disabling discards it.
func (e *Engine) SetTwoFactor(ctx context.Context, actor *Session, accountID string, enabled bool) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if actor == nil {
		return e.deny(ctx, nil, permission.UsersManage, "Account", accountID)
	}

	var scope Scope
	if actor.AccountID == accountID {
		scope = tenant.ForTenant(actor.TenantID)
		if actor.TenantID == "" {
			scope = tenant.PlatformScope()
		}
	} else {
		s, err := e.authorizeAdmin(ctx, actor, permission.UsersManage, "Account", accountID)
		if err != nil {
			return err
		}
		scope = s
	}

	target, err := e.adminTarget(ctx, scope, accountID)
	if err != nil {
		return err
	}

	var secret []byte
	if enabled {
		secret = target.TOTPSecret
		if len(secret) == 0 {
			if secret, _, err = e.totp.GenerateSecret(); err != nil {
				return err
			}
		}
	}
	if err := e.accounts.SetTOTP(ctx, target.ID, secret, enabled); err != nil {
		return err
	}

	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionTwoFactorToggle,
		ActorID:    actor.AccountID,
		TenantID:   target.TenantID,
		Resource:   "Account",
		ResourceID: target.ID,
		Success:    true,
		Details:    map[string]string{"enabled": boolString(enabled)},
	})
	return nil
}

// RequirePasswordReset forces accountID to choose a new password at its next
// login. Requires users.manage.
func (e *Engine) RequirePasswordReset(ctx context.Context, actor *Session, accountID string) error {
	scope, err := e.authorizeAdmin(ctx, actor, permission.UsersManage, "Account", accountID)
	if err != nil {
		return err
	}
	target, err := e.adminTarget(ctx, scope, accountID)
	if err != nil {
		return err
	}
	if err := e.accounts.SetMustResetPassword(ctx, target.ID, true); err != nil {
		return err
	}

	e.sendMail(mail.Templated(mail.TemplatePasswordReset, target.Email, "Password change required", nil))
	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionPasswordResetRequired,
		ActorID:    actor.AccountID,
		TenantID:   target.TenantID,
		Resource:   "Account",
		ResourceID: target.ID,
		Success:    true,
	})
	return nil
}

// CreateAccount adds an account to the actor's tenant. Requires
// users.manage. The account starts with mustResetPassword set and is sent a
// welcome message.
func (e *Engine) CreateAccount(ctx context.Context, actor *Session, in NewAccount) (*Account, error) {
	scope, err := e.authorizeAdmin(ctx, actor, permission.UsersManage, "Account", "")
	if err != nil {
		return nil, err
	}
	if !scope.HasTenant() {
		e.metricInc(MetricConfigurationError)
		return nil, fmt.Errorf("%w: account creation requires a tenant", ErrConfiguration)
	}

	role := permission.NormalizeRole(in.Role)
	if !e.roles.Known(role) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if e.tenants.IsPlatformOperator(tenant.Actor{Role: role}) && !e.IsPlatformOperator(actor) {
		return nil, e.deny(ctx, actor, ActionAccountCreated, "Account", "")
	}

	a, err := e.createAccount(ctx, in.Email, in.Password, role, scope.TenantID, true)
	if err != nil {
		return nil, err
	}

	e.sendMail(mail.Templated(mail.TemplateWelcome, a.Email, "Your new account", map[string]string{"role": a.Role}))
	e.metricInc(MetricAdminChange)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionAccountCreated,
		ActorID:    actor.AccountID,
		TenantID:   a.TenantID,
		Resource:   "Account",
		ResourceID: a.ID,
		Success:    true,
		Details:    map[string]string{"role": a.Role},
	})
	return a, nil
}

// SeedOperator creates the first platform operator, with no tenant, when no
// account with email exists. It is meant for bootstrap and needs no actor.
func (e *Engine) SeedOperator(ctx context.Context, email, password string) (*Account, bool, error) {
	if e == nil || e.accounts == nil {
		return nil, false, ErrEngineNotReady
	}
	if len(e.config.Tenant.PlatformRoles) == 0 {
		return nil, false, fmt.Errorf("%w: no platform role configured", ErrConfiguration)
	}
	existing, err := e.accounts.FindByEmail(ctx, credstore.NormalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, credstore.ErrNotFound) {
		return nil, false, err
	}

	a, err := e.createAccount(ctx, email, password, e.config.Tenant.PlatformRoles[0], "", false)
	if err != nil {
		return nil, false, err
	}
	e.emitAudit(ctx, auditEntry{
		Action:     ActionAccountCreated,
		ActorID:    a.ID,
		Resource:   "Account",
		ResourceID: a.ID,
		Success:    true,
		Details:    map[string]string{"role": a.Role, "seed": "true"},
	})
	return a, true, nil
}

func (e *Engine) createAccount(ctx context.Context, email, password, role, tenantID string, mustReset bool) (*Account, error) {
	email = credstore.NormalizeEmail(email)
	if !flows.ValidEmail(email) {
		return nil, ErrInvalidInput
	}
	if !flows.ValidPassword(password, e.config.Password.MinLength) {
		return nil, ErrPasswordPolicy
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		Email:             email,
		PasswordHash:      hash,
		Role:              permission.NormalizeRole(role),
		TenantID:          strings.TrimSpace(tenantID),
		MustResetPassword: mustReset,
	}
	if err := e.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, credstore.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: email already registered", ErrInvalidInput)
		}
		return nil, err
	}
	return a, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
