package tenant

import (
	"testing"
	"time"
)

func TestResolveOrdinaryActorIgnoresOverride(t *testing.T) {
	r := NewResolver(RoleCapability("SUPERADMIN"), nil)
	actor := Actor{AccountID: "u1", Role: "ADMIN", TenantID: "t1"}

	got := r.Resolve(actor, &Override{AccountID: "u1", TenantID: "t2"})
	if got != ForTenant("t1") {
		t.Fatalf("expected own tenant, got %s", got)
	}

	orphan := Actor{AccountID: "u2", Role: "EMPLOYEE"}
	if got := r.Resolve(orphan, nil); got.HasTenant() || got.Platform {
		t.Fatalf("ordinary actor without tenant must be unresolved, got %s", got)
	}
}

func TestResolvePlatformOperator(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver(RoleCapability("superadmin"), func() time.Time { return now })
	root := Actor{AccountID: "root", Role: "SUPERADMIN"}

	if got := r.Resolve(root, nil); got != PlatformScope() {
		t.Fatalf("expected platform scope, got %s", got)
	}

	valid := &Override{AccountID: "root", TenantID: "t7", ExpiresAt: now.Add(time.Minute)}
	if got := r.Resolve(root, valid); got != ForTenant("t7") {
		t.Fatalf("expected override tenant, got %s", got)
	}

	expired := &Override{AccountID: "root", TenantID: "t7", ExpiresAt: now.Add(-time.Second)}
	if got := r.Resolve(root, expired); got != PlatformScope() {
		t.Fatalf("expired override must be ignored, got %s", got)
	}

	stolen := &Override{AccountID: "someone-else", TenantID: "t7"}
	if got := r.Resolve(root, stolen); got != PlatformScope() {
		t.Fatalf("override bound to another account must be ignored, got %s", got)
	}

	homed := Actor{AccountID: "root2", Role: "SUPERADMIN", TenantID: "t1"}
	if got := r.Resolve(homed, nil); got != ForTenant("t1") {
		t.Fatalf("expected own tenant without override, got %s", got)
	}
}

func TestNilCapabilityGrantsNothing(t *testing.T) {
	r := NewResolver(nil, nil)
	if r.IsPlatformOperator(Actor{Role: "SUPERADMIN"}) {
		t.Fatal("nil capability must deny")
	}
}
