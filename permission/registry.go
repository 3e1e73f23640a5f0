package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Built-in permission tokens.
const (
	UsersManage        = "users.manage"
	UsersView          = "users.view"
	RolesManage        = "roles.manage"
	EmployeesManage    = "employees.manage"
	EmployeesView      = "employees.view"
	ShiftsManage       = "shifts.manage"
	AssetsManage       = "assets.manage"
	TrainingsManage    = "trainings.manage"
	CertificatesManage = "certificates.manage"
	PoliciesManage     = "policies.manage"
	FormsManage        = "forms.manage"
	ReportsView        = "reports.view"
	SettingsManage     = "settings.manage"
	AuditView          = "audit.view"
	TenantsManage      = "tenants.manage"
	LicensesManage     = "licenses.manage"
)

// Builtin lists every token in the default catalog.
var Builtin = []string{
	UsersManage, UsersView, RolesManage,
	EmployeesManage, EmployeesView, ShiftsManage, AssetsManage,
	TrainingsManage, CertificatesManage, PoliciesManage, FormsManage,
	ReportsView, SettingsManage, AuditView,
	TenantsManage, LicensesManage,
}

var (
	// ErrUnknownPermission is returned when a token is not in the catalog.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("registry frozen")
)

// Registry is the enumerable catalog of permission tokens an installation
// recognizes. Role templates and custom overrides are validated against it.
type Registry struct {
	mu     sync.RWMutex
	names  map[string]struct{}
	frozen bool
}

// NewRegistry creates a [Registry] preloaded with tokens.
func NewRegistry(tokens ...string) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a frozen registry holding [Builtin].
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin...)
	if err != nil {
		panic(err)
	}
	r.Freeze()
	return r
}

// Register adds a token. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if name == "" {
		return errors.New("permission name cannot be empty")
	}
	if _, exists := r.names[name]; exists {
		return errors.New("permission already registered")
	}
	r.names[name] = struct{}{}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Has reports whether name is a known token.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// All returns every registered token, sorted.
func (r *Registry) All() Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return NewSet(out...)
}

// Validate checks that every member of s is registered.
func (r *Registry) Validate(s Set) error {
	for _, t := range s.keys {
		if !r.Has(t) {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, t)
		}
	}
	return nil
}
