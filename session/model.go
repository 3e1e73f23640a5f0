package session

import (
	"time"

	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/tenant"
)

// Session is the permission snapshot taken when an account logged in.
type Session struct {
	ID                string
	AccountID         string
	Role              string
	TenantID          string
	Permissions       permission.Set
	MustResetPassword bool
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

// Actor returns the fields the tenant resolver reads.
func (s *Session) Actor() tenant.Actor {
	return tenant.Actor{AccountID: s.AccountID, Role: s.Role, TenantID: s.TenantID}
}

// Can reports whether the snapshot grants perm.
func (s *Session) Can(perm string) bool {
	return s != nil && s.Permissions.Has(perm)
}
