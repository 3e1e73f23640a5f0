package credstore

import (
	"strings"

	"github.com/MrEthical07/goGuard/permission"
)

// Account is a login identity owned by a tenant. TenantID is empty for
// platform accounts.
type Account struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              string
	TenantID          string
	CustomPermissions *permission.Set
	TOTPSecret        []byte
	TOTPEnabled       bool
	MustResetPassword bool
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.CustomPermissions != nil {
		c.CustomPermissions = a.CustomPermissions.Ptr()
	}
	if a.TOTPSecret != nil {
		c.TOTPSecret = append([]byte(nil), a.TOTPSecret...)
	}
	return &c
}

// RoleTemplate is a tenant's default permission set for a role.
type RoleTemplate struct {
	TenantID    string
	RoleName    string
	Permissions permission.Set
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
