package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/medledger/medledger/internal/ledger"
)

type mockRoleRepo struct {
	members map[string]map[Role]bool
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{members: make(map[string]map[Role]bool)}
}

func (m *mockRoleRepo) Add(_ context.Context, identity string, role Role, _ string) error {
	if m.members[identity] == nil {
		m.members[identity] = make(map[Role]bool)
	}
	m.members[identity][role] = true
	return nil
}

func (m *mockRoleRepo) Remove(_ context.Context, identity string, role Role) (bool, error) {
	if !m.members[identity][role] {
		return false, nil
	}
	delete(m.members[identity], role)
	return true, nil
}

func (m *mockRoleRepo) Has(_ context.Context, identity string, role Role) (bool, error) {
	return m.members[identity][role], nil
}

func (m *mockRoleRepo) CountHolders(_ context.Context, role Role) (int, error) {
	n := 0
	for _, roles := range m.members {
		if roles[role] {
			n++
		}
	}
	return n, nil
}

func (m *mockRoleRepo) ListRoles(_ context.Context, identity string) ([]Role, error) {
	var out []Role
	for r := range m.members[identity] {
		out = append(out, r)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *mockRoleRepo) {
	t.Helper()
	repo := newMockRoleRepo()
	svc := NewService(repo)
	if err := svc.Bootstrap(context.Background(), "root"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return svc, repo
}

func TestSuperAdminGrantsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.GrantRole(ctx, "root", RoleAdmin, "alice"); err != nil {
		t.Fatalf("superadmin grant admin: %v", err)
	}
	has, err := svc.HasRole(ctx, RoleAdmin, "alice")
	if err != nil || !has {
		t.Fatalf("expected alice to hold admin, has=%v err=%v", has, err)
	}
}

func TestAdminCannotGrantAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.GrantRole(ctx, "root", RoleAdmin, "alice"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	err := svc.GrantRole(ctx, "alice", RoleAdmin, "bob")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAdminGrantsDomainRoles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.GrantRole(ctx, "root", RoleAdmin, "alice"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	for _, role := range []Role{RoleDoctor, RolePatient, RolePharmacist, RoleVerifier, RoleInsurer} {
		if err := svc.GrantRole(ctx, "alice", role, "someone"); err != nil {
			t.Fatalf("admin grant %s: %v", role, err)
		}
	}
}

func TestUnprivilegedCannotGrant(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.GrantRole(context.Background(), "nobody", RolePatient, "bob")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGrantUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.GrantRole(context.Background(), "root", Role("janitor"), "bob")
	if !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRevokeMissingAssignment(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.RevokeRole(context.Background(), "root", RoleDoctor, "bob")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSuperAdminCannotBeRevokedWithoutSuccessor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.RevokeRole(ctx, "root", RoleSuperAdmin, "root")
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition without successor, got %v", err)
	}

	if err := svc.GrantRole(ctx, "root", RoleSuperAdmin, "heir"); err != nil {
		t.Fatalf("grant successor: %v", err)
	}
	if err := svc.RevokeRole(ctx, "root", RoleSuperAdmin, "root"); err != nil {
		t.Fatalf("revoke own superadmin with successor: %v", err)
	}

	// The heir, not a third party, now administers superadmin.
	err = svc.RevokeRole(ctx, "heir", RoleSuperAdmin, "someone-else")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized revoking another's superadmin, got %v", err)
	}
}

func TestBootstrapIdempotentAndGuarded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Bootstrap(ctx, "root"); err != nil {
		t.Fatalf("re-bootstrap same identity: %v", err)
	}
	err := svc.Bootstrap(ctx, "intruder")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for second bootstrap identity, got %v", err)
	}
}

func TestIdentityHoldsMultipleRoles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.GrantRole(ctx, "root", RoleDoctor, "carol"); err != nil {
		t.Fatalf("grant doctor: %v", err)
	}
	if err := svc.GrantRole(ctx, "root", RolePatient, "carol"); err != nil {
		t.Fatalf("grant patient: %v", err)
	}
	roles, err := svc.RolesOf(ctx, "carol")
	if err != nil {
		t.Fatalf("roles of: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %v", roles)
	}
}
