package credstore

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/permission"
)

var (
	// ErrNotFound is returned when an account or role template does not exist.
	ErrNotFound = errors.New("credstore: not found")
	// ErrDuplicateEmail is returned when creating an account whose email is taken.
	ErrDuplicateEmail = errors.New("credstore: email already registered")
)

// Store is the credential store used by login and administration.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) error

	UpdatePassword(ctx context.Context, id, hash string, mustReset bool) error
	SetMustResetPassword(ctx context.Context, id string, mustReset bool) error
	SetTOTP(ctx context.Context, id string, secret []byte, enabled bool) error
	SetRole(ctx context.Context, id, role string) error
	// SetCustomPermissions stores an override. nil restores inheritance.
	SetCustomPermissions(ctx context.Context, id string, perms *permission.Set) error

	FindRoleTemplate(ctx context.Context, tenantID, role string) (*RoleTemplate, error)
	SaveRoleTemplate(ctx context.Context, tpl RoleTemplate) error
}

// Templates adapts a [Store] to [permission.TemplateLookup].
func Templates(s Store) permission.TemplateLookup {
	return templateLookup{store: s}
}

type templateLookup struct {
	store Store
}

func (t templateLookup) RoleTemplate(ctx context.Context, tenantID, role string) (permission.Set, bool, error) {
	tpl, err := t.store.FindRoleTemplate(ctx, tenantID, role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return permission.Set{}, false, nil
		}
		return permission.Set{}, false, err
	}
	return tpl.Permissions, true, nil
}
