package permission

import (
	"errors"
	"strings"
	"sync"
)

// Built-in role names.
const (
	RoleSuperAdmin  = "SUPERADMIN"
	RoleAdmin       = "ADMIN"
	RoleNameManager = "MANAGER"
	RoleTrainer     = "TRAINER"
	RoleEmployee    = "EMPLOYEE"
)

// RoleManager holds the static, hard-coded default permission set per role.
// It is the last fallback when neither a custom override nor a role template
// applies.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Set
	frozen bool
}

// NewRoleManager creates an empty [RoleManager] validating against registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Set),
	}
}

// DefaultRoleManager returns a frozen manager with the built-in role map.
func DefaultRoleManager(registry *Registry) *RoleManager {
	rm := NewRoleManager(registry)
	defaults := map[string][]string{
		RoleSuperAdmin: Builtin,
		RoleAdmin: {
			UsersManage, UsersView, RolesManage,
			EmployeesManage, EmployeesView, ShiftsManage, AssetsManage,
			TrainingsManage, CertificatesManage, PoliciesManage, FormsManage,
			ReportsView, SettingsManage, AuditView,
		},
		RoleNameManager: {
			UsersView, EmployeesManage, EmployeesView, ShiftsManage,
			AssetsManage, ReportsView,
		},
		RoleTrainer: {
			EmployeesView, TrainingsManage, CertificatesManage, FormsManage,
		},
		RoleEmployee: {},
	}
	for role, perms := range defaults {
		if err := rm.RegisterRole(role, perms); err != nil {
			panic(err)
		}
	}
	rm.Freeze()
	return rm
}

// RegisterRole stores the default set for roleName.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	roleName = NormalizeRole(roleName)
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	set := NewSet(permissionNames...)
	if rm.registry != nil {
		if err := rm.registry.Validate(set); err != nil {
			return err
		}
	}
	rm.roles[roleName] = set
	return nil
}

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Default returns the static set for role. Unknown roles get the empty set.
func (rm *RoleManager) Default(role string) Set {
	if rm == nil {
		return Set{}
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.roles[NormalizeRole(role)]
}

// Known reports whether role has a registered default.
func (rm *RoleManager) Known(role string) bool {
	if rm == nil {
		return false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.roles[NormalizeRole(role)]
	return ok
}

// NormalizeRole upper-cases and trims a role name.
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
