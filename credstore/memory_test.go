package credstore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goGuard/permission"
)

func TestMemoryEmailLookupIsCaseInsensitive(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a := &Account{Email: " Alice@Example.COM ", PasswordHash: "h", Role: "trainer", TenantID: "t1"}
	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.Role != permission.RoleTrainer {
		t.Fatalf("expected normalized role, got %q", got.Role)
	}

	if err := s.Create(ctx, &Account{Email: "ALICE@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := s.FindByEmail(ctx, "bob@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a := &Account{Email: "a@x.io", TOTPSecret: []byte("secret")}
	_ = s.Create(ctx, a)

	got, _ := s.FindByID(ctx, a.ID)
	got.TOTPSecret[0] = 'X'
	got.Role = "ADMIN"

	again, _ := s.FindByID(ctx, a.ID)
	if string(again.TOTPSecret) != "secret" || again.Role != "" {
		t.Fatal("store leaked internal state")
	}
}

func TestMemoryCustomPermissionsNilVersusEmpty(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a := &Account{Email: "a@x.io"}
	_ = s.Create(ctx, a)

	empty := permission.NewSet()
	if err := s.SetCustomPermissions(ctx, a.ID, &empty); err != nil {
		t.Fatalf("SetCustomPermissions: %v", err)
	}
	got, _ := s.FindByID(ctx, a.ID)
	if got.CustomPermissions == nil || !got.CustomPermissions.Empty() {
		t.Fatal("expected explicit empty override")
	}

	_ = s.SetCustomPermissions(ctx, a.ID, nil)
	got, _ = s.FindByID(ctx, a.ID)
	if got.CustomPermissions != nil {
		t.Fatal("expected inheritance after clearing override")
	}
}

func TestMemoryMutationsOnMissingAccount(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if err := s.UpdatePassword(ctx, "nope", "h", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetTOTP(ctx, "nope", nil, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplatesAdapter(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.SaveRoleTemplate(ctx, RoleTemplate{TenantID: "t1", RoleName: "trainer", Permissions: permission.NewSet(permission.FormsManage)})

	lookup := Templates(s)
	set, found, err := lookup.RoleTemplate(ctx, "t1", permission.RoleTrainer)
	if err != nil || !found || !set.Has(permission.FormsManage) {
		t.Fatalf("unexpected lookup result %v %v %v", set, found, err)
	}
	_, found, err = lookup.RoleTemplate(ctx, "t2", permission.RoleTrainer)
	if err != nil || found {
		t.Fatalf("expected missing template, got found=%v err=%v", found, err)
	}
}
