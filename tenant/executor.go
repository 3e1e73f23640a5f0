package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/query"
	"go.uber.org/zap"
)

var _ query.Executor = (*ScopedExecutor)(nil)

// ScopedExecutor runs every operation through an [Interceptor] for one scope
// and verifies that no returned row belongs to another tenant.
type ScopedExecutor struct {
	inner       query.Executor
	interceptor *Interceptor
	scope       Scope
	logger      *zap.Logger
}

// NewScopedExecutor binds inner to scope. logger may be nil.
func NewScopedExecutor(inner query.Executor, interceptor *Interceptor, scope Scope, logger *zap.Logger) *ScopedExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopedExecutor{
		inner:       inner,
		interceptor: interceptor,
		scope:       scope,
		logger:      logger,
	}
}

// Scope returns the bound scope.
func (e *ScopedExecutor) Scope() Scope {
	return e.scope
}

// Execute implements [query.Executor].
func (e *ScopedExecutor) Execute(ctx context.Context, op query.Operation) (query.Result, error) {
	scoped, err := e.interceptor.Rewrite(e.scope, op)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			e.logger.Error("partitioned operation rejected",
				zap.String("entity", op.Entity),
				zap.String("kind", string(op.Kind)),
				zap.Stringer("scope", e.scope),
				zap.String("severity", "high"),
				zap.Error(err),
			)
		}
		return query.Result{}, err
	}

	res, err := e.inner.Execute(ctx, scoped)
	if err != nil {
		return query.Result{}, err
	}

	if e.scope.HasTenant() && e.interceptor.Catalog().Partitioned(op.Entity) {
		col := e.interceptor.Catalog().Column()
		for _, r := range res.Records {
			v, ok := r[col]
			if !ok {
				continue
			}
			if !query.Equal(v, e.scope.TenantID) {
				e.logger.Error("row escaped tenant scope",
					zap.String("entity", op.Entity),
					zap.String("kind", string(op.Kind)),
					zap.Stringer("scope", e.scope),
					zap.Any("row_tenant", v),
					zap.String("severity", "high"),
				)
				return query.Result{}, fmt.Errorf("%w: %s row of tenant %v returned under %s", ErrScopeViolation, op.Entity, v, e.scope)
			}
		}
	}
	return res, nil
}
