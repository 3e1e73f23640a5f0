package credstore

import (
	"context"
	"sync"

	"github.com/MrEthical07/goGuard/permission"
	"github.com/google/uuid"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process [Store].
type Memory struct {
	mu        sync.RWMutex
	accounts  map[string]*Account
	byEmail   map[string]string
	templates map[templateKey]RoleTemplate
}

type templateKey struct {
	tenantID string
	role     string
}

// NewMemory creates an empty [Memory] store.
func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[string]*Account),
		byEmail:   make(map[string]string),
		templates: make(map[templateKey]RoleTemplate),
	}
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.accounts[id].Clone(), nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// Create stores a copy of a, assigning an id when empty.
func (m *Memory) Create(_ context.Context, a *Account) error {
	email := NormalizeEmail(a.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return ErrDuplicateEmail
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = email
	a.Role = permission.NormalizeRole(a.Role)
	m.accounts[a.ID] = a.Clone()
	m.byEmail[email] = a.ID
	return nil
}

func (m *Memory) UpdatePassword(_ context.Context, id, hash string, mustReset bool) error {
	return m.mutate(id, func(a *Account) {
		a.PasswordHash = hash
		a.MustResetPassword = mustReset
	})
}

func (m *Memory) SetMustResetPassword(_ context.Context, id string, mustReset bool) error {
	return m.mutate(id, func(a *Account) { a.MustResetPassword = mustReset })
}

func (m *Memory) SetTOTP(_ context.Context, id string, secret []byte, enabled bool) error {
	return m.mutate(id, func(a *Account) {
		a.TOTPSecret = append([]byte(nil), secret...)
		if len(secret) == 0 {
			a.TOTPSecret = nil
		}
		a.TOTPEnabled = enabled
	})
}

func (m *Memory) SetRole(_ context.Context, id, role string) error {
	return m.mutate(id, func(a *Account) { a.Role = permission.NormalizeRole(role) })
}

func (m *Memory) SetCustomPermissions(_ context.Context, id string, perms *permission.Set) error {
	return m.mutate(id, func(a *Account) {
		if perms == nil {
			a.CustomPermissions = nil
			return
		}
		a.CustomPermissions = perms.Ptr()
	})
}

func (m *Memory) FindRoleTemplate(_ context.Context, tenantID, role string) (*RoleTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[templateKey{tenantID, permission.NormalizeRole(role)}]
	if !ok {
		return nil, ErrNotFound
	}
	return &tpl, nil
}

func (m *Memory) SaveRoleTemplate(_ context.Context, tpl RoleTemplate) error {
	tpl.RoleName = permission.NormalizeRole(tpl.RoleName)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[templateKey{tpl.TenantID, tpl.RoleName}] = tpl
	return nil
}

func (m *Memory) mutate(id string, fn func(*Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	fn(a)
	return nil
}
