package goGuard

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goGuard/query"
	"github.com/MrEthical07/goGuard/tenant"
	"go.uber.org/zap"
)

// ResolveTenant returns the scope s acts in. overrideToken is the signed
// override a platform operator selected, or empty. An override that fails
// verification, has expired or belongs to another account is ignored.
func (e *Engine) ResolveTenant(s *Session, overrideToken string) Scope {
	if e == nil || s == nil {
		return Scope{}
	}
	var override *tenant.Override
	if overrideToken != "" {
		o, err := e.sessions.ParseOverride(overrideToken)
		if err != nil {
			e.logger.Debug("tenant override ignored", zap.String("actor_id", s.AccountID), zap.Error(err))
		} else {
			override = o
		}
	}
	return e.tenants.Resolve(s.Actor(), override)
}

// IsPlatformOperator reports whether s may select other tenants.
func (e *Engine) IsPlatformOperator(s *Session) bool {
	return e != nil && s != nil && e.tenants.IsPlatformOperator(s.Actor())
}

// IssueTenantOverride lets a platform operator act inside tenantID. The
// returned token is bound to the operator's account and expires after
// Tenant.OverrideTTL. Anyone else gets ErrUnauthorized.
func (e *Engine) IssueTenantOverride(ctx context.Context, s *Session, tenantID string) (*OverrideResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if s == nil || !e.IsPlatformOperator(s) {
		return nil, e.deny(ctx, s, ActionTenantOverrideSet, "Tenant", tenantID)
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, ErrInvalidInput
	}

	token, o, err := e.sessions.IssueOverride(s.AccountID, tenantID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTenantOverride)
	e.emitAudit(ctx, auditEntry{
		Action:     ActionTenantOverrideSet,
		ActorID:    s.AccountID,
		TenantID:   tenantID,
		Resource:   "Tenant",
		ResourceID: tenantID,
		Success:    true,
		Details:    map[string]string{"expires_at": o.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")},
	})
	return &OverrideResult{Token: token, Override: o}, nil
}

// ClearTenantOverride audits the end of an override. The caller drops the
// override cookie; the token itself expires on its own.
func (e *Engine) ClearTenantOverride(ctx context.Context, s *Session, overrideToken string) {
	if e == nil || s == nil {
		return
	}
	var tenantID string
	if o, err := e.sessions.ParseOverride(overrideToken); err == nil && o.AccountID == s.AccountID {
		tenantID = o.TenantID
	}
	e.emitAudit(ctx, auditEntry{
		Action:     ActionTenantOverrideClear,
		ActorID:    s.AccountID,
		TenantID:   tenantID,
		Resource:   "Tenant",
		ResourceID: tenantID,
		Success:    true,
	})
}

// ExecutorFor returns inner bound to scope through the tenant interceptor.
// Every read and write against a partitioned entity is filtered to, or
// stamped with, the scope's tenant. Scope violations and configuration errors
// are counted and audited at high severity.
func (e *Engine) ExecutorFor(inner query.Executor, scope Scope) query.Executor {
	scoped := tenant.NewScopedExecutor(inner, e.interceptor, scope, e.logger)
	return query.ExecutorFunc(func(ctx context.Context, op query.Operation) (query.Result, error) {
		res, err := scoped.Execute(ctx, op)
		if err != nil {
			e.observeScopeError(ctx, scope, op, err)
		}
		return res, err
	})
}

func (e *Engine) observeScopeError(ctx context.Context, scope Scope, op query.Operation, err error) {
	var action string
	switch {
	case errors.Is(err, ErrTenantScopeViolation):
		e.metricInc(MetricTenantScopeViolation)
		action = ActionTenantScopeViolation
	case errors.Is(err, ErrConfiguration):
		e.metricInc(MetricConfigurationError)
		action = ActionConfigurationError
	default:
		return
	}

	var actorID string
	if s, ok := SessionFromContext(ctx); ok {
		actorID = s.AccountID
	}
	e.emitAudit(ctx, auditEntry{
		Action:   action,
		ActorID:  actorID,
		TenantID: scope.TenantID,
		Resource: op.Entity,
		Err:      err,
		Details:  map[string]string{"operation": string(op.Kind), "scope": scope.String()},
	})
}
