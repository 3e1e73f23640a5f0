package tenant

import "sort"

// DefaultColumn is the partition column carried by every partitioned entity.
const DefaultColumn = "tenant_id"

// Entities partitioned by tenant. Adding an entity is a one-line change here.
var DefaultEntities = []string{
	"Account",
	"Employee",
	"Shift",
	"ShiftAssignment",
	"Asset",
	"Training",
	"TrainingRecord",
	"Certificate",
	"Policy",
	"FormTemplate",
	"FormSubmission",
	"OrganizationSettings",
	"RoleTemplate",
	"AuditLog",
}

// Catalog is the set of tenant-partitioned entities and their partition column.
type Catalog struct {
	column   string
	entities map[string]struct{}
}

// NewCatalog creates a catalog. An empty column means [DefaultColumn].
func NewCatalog(column string, entities ...string) *Catalog {
	if column == "" {
		column = DefaultColumn
	}
	c := &Catalog{column: column, entities: make(map[string]struct{}, len(entities))}
	for _, e := range entities {
		c.entities[e] = struct{}{}
	}
	return c
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultColumn, DefaultEntities...)
}

// Partitioned reports whether entity carries a tenant column.
func (c *Catalog) Partitioned(entity string) bool {
	_, ok := c.entities[entity]
	return ok
}

// Column returns the partition column name.
func (c *Catalog) Column() string {
	return c.column
}

// Entities returns the partitioned entity names, sorted.
func (c *Catalog) Entities() []string {
	out := make([]string, 0, len(c.entities))
	for e := range c.entities {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
