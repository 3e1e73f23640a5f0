package goGuard

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goGuard/permission"
	"go.uber.org/zap"
)

// EffectivePermissions resolves the live permission set of a: its custom
// override when set (an empty override grants nothing), else its tenant's
// template for its role, else the built-in default for the role.
//
// Sessions carry a snapshot of this value taken at login. Template edits
// show up here immediately but in a session only after the next login.
func (e *Engine) EffectivePermissions(ctx context.Context, a *Account) (PermissionSet, error) {
	src, err := e.PermissionSource(ctx, a)
	if err != nil {
		return PermissionSet{}, err
	}
	return src.Permissions(), nil
}

// PermissionSource is EffectivePermissions with the winning source kept.
func (e *Engine) PermissionSource(ctx context.Context, a *Account) (permission.Source, error) {
	if e == nil || e.permissions == nil {
		return nil, ErrEngineNotReady
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return e.permissions.Resolve(ctx, permission.Subject{
		TenantID: a.TenantID,
		Role:     a.Role,
		Custom:   a.CustomPermissions,
	})
}

// RequirePermission checks perm against the session snapshot. A failure is
// logged, counted and audited with the actor and resource, and returned as
// ErrUnauthorized.
func (e *Engine) RequirePermission(ctx context.Context, s *Session, perm, resource string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if s.Can(perm) {
		return nil
	}
	return e.deny(ctx, s, perm, resource, "")
}

func (e *Engine) deny(ctx context.Context, s *Session, action, resource, resourceID string) error {
	var actorID, tenantID string
	if s != nil {
		actorID, tenantID = s.AccountID, s.TenantID
	}
	e.logger.Warn("unauthorized",
		zap.String("actor_id", actorID),
		zap.String("tenant_id", tenantID),
		zap.String("action", action),
		zap.String("resource", resource),
		zap.String("resource_id", resourceID),
	)
	e.metricInc(MetricUnauthorized)

	err := fmt.Errorf("%w: %s on %s", ErrUnauthorized, action, resource)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionUnauthorized,
		ActorID:    actorID,
		TenantID:   tenantID,
		Resource:   resource,
		ResourceID: resourceID,
		Err:        err,
		Details:    map[string]string{"required": action},
	})
	return err
}
