package permission

import (
	"errors"
	"testing"
)

func TestRegistryRejectsAfterFreeze(t *testing.T) {
	r, err := NewRegistry("a.read")
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	r.Freeze()
	if err := r.Register("a.write"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestRegistryValidate(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Validate(NewSet(FormsManage, ReportsView)); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if err := r.Validate(NewSet("forms.delete")); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestRoleManagerRejectsUnknownPermission(t *testing.T) {
	rm := NewRoleManager(DefaultRegistry())
	if err := rm.RegisterRole("AUDITOR", []string{"audit.everything"}); err == nil {
		t.Fatal("expected error for unknown permission")
	}
	if err := rm.RegisterRole("auditor", []string{AuditView}); err != nil {
		t.Fatalf("RegisterRole failed: %v", err)
	}
	if !rm.Default("AUDITOR").Has(AuditView) {
		t.Fatal("expected role name to be normalized")
	}
}

func TestSetSemantics(t *testing.T) {
	s := NewSet("b", "a", "b", " ")
	if s.Len() != 2 || !s.Has("a") || !s.Has("b") {
		t.Fatalf("unexpected set %s", s)
	}
	if got := s.Without("a"); !got.Equal(NewSet("b")) {
		t.Fatalf("Without: got %s", got)
	}
	if got := s.With("c"); got.Len() != 3 {
		t.Fatalf("With: got %s", got)
	}
	if !(Set{}).Empty() {
		t.Fatal("zero value must be empty")
	}
	p := s.Ptr()
	if p == nil || !p.Equal(s) {
		t.Fatal("Ptr must copy the set")
	}
}
