package tenant

import (
	"fmt"

	"github.com/MrEthical07/goGuard/query"
)

// Interceptor rewrites operations so they cannot leave their tenant.
type Interceptor struct {
	catalog *Catalog
}

// NewInterceptor creates an [Interceptor]. A nil catalog means [DefaultCatalog].
func NewInterceptor(catalog *Catalog) *Interceptor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Interceptor{catalog: catalog}
}

// Catalog returns the partitioned-entity catalog.
func (i *Interceptor) Catalog() *Catalog {
	return i.catalog
}

// Rewrite scopes op to s. Operations on entities outside the catalog are
// returned unchanged. The caller's op is never mutated.
func (i *Interceptor) Rewrite(s Scope, op query.Operation) (query.Operation, error) {
	if !i.catalog.Partitioned(op.Entity) {
		return op, nil
	}
	if !op.Kind.Valid() {
		return query.Operation{}, fmt.Errorf("%w: kind %q", query.ErrUnsupported, op.Kind)
	}

	if !s.HasTenant() {
		if op.Kind.IsRead() && s.Platform {
			return op, nil
		}
		return query.Operation{}, fmt.Errorf("%w: %s %s without tenant (%s)", ErrConfiguration, op.Kind, op.Entity, s)
	}

	col := i.catalog.Column()
	out := op.Clone()

	if out.Kind.IsFiltered() {
		out.Where = append(out.Where, query.Eq(col, s.TenantID))
	}

	switch out.Kind {
	case query.Create:
		out.Data = pin(out.Data, col, s.TenantID)
	case query.CreateMany:
		for idx := range out.Records {
			out.Records[idx] = pin(out.Records[idx], col, s.TenantID)
		}
	case query.Update, query.UpdateMany:
		out.Data = pin(out.Data, col, s.TenantID)
	case query.Upsert:
		out.Create = pin(out.Create, col, s.TenantID)
		if len(out.Data) > 0 {
			out.Data = pin(out.Data, col, s.TenantID)
		}
	}
	return out, nil
}

func pin(r query.Record, col, tenantID string) query.Record {
	if r == nil {
		r = query.Record{}
	}
	r[col] = tenantID
	return r
}
