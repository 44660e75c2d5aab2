package patient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
)

type mockPatientRepo struct {
	patients map[string]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[string]*Patient)}
}

func (m *mockPatientRepo) Insert(_ context.Context, p *Patient) error {
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) UpdateData(_ context.Context, p *Patient) error {
	cur, ok := m.patients[p.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Data = p.Data
	cur.UpdatedAt = p.UpdatedAt
	return nil
}

func (m *mockPatientRepo) SetExists(_ context.Context, id string, exists bool, at time.Time) error {
	cur, ok := m.patients[id]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Exists = exists
	cur.UpdatedAt = at
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.patients {
		if p.Exists {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPatientRepo) Exists(_ context.Context, id string) (bool, error) {
	p, ok := m.patients[id]
	return ok && p.Exists, nil
}

func (m *mockPatientRepo) Has(_ context.Context, id string) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

type stubRoles map[string][]rbac.Role

func (s stubRoles) HasRole(_ context.Context, role rbac.Role, identity string) (bool, error) {
	for _, r := range s[identity] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

type recordingAudit struct {
	actions []string
	err     error
}

func (r *recordingAudit) Record(_ context.Context, _, action, _, _ string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.actions = append(r.actions, action)
	return "audit-id", nil
}

type immediateRunner struct{}

func (immediateRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockPatientRepo, *recordingAudit) {
	repo := newMockPatientRepo()
	trail := &recordingAudit{}
	roles := stubRoles{
		"admin":  {rbac.RoleAdmin},
		"alice":  {rbac.RolePatient},
		"bob":    {rbac.RolePatient},
		"dr-lee": {rbac.RoleDoctor},
	}
	svc := NewService(repo, roles, trail, immediateRunner{})
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, trail
}

func TestPatientCreatesOwnRecord(t *testing.T) {
	svc, repo, trail := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, "alice", "p-1", "", json.RawMessage(`{"name":"Alice"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	p := repo.patients["p-1"]
	if p == nil || p.OwnerIdentity != "alice" || !p.Exists {
		t.Fatalf("unexpected stored patient %+v", p)
	}
	if len(trail.actions) != 1 || trail.actions[0] != "PatientCreated" {
		t.Fatalf("expected one PatientCreated audit entry, got %v", trail.actions)
	}
}

func TestAdminCreatesOnBehalf(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, "admin", "p-1", "carol", nil); err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if repo.patients["p-1"].OwnerIdentity != "carol" {
		t.Fatalf("expected carol as owner, got %s", repo.patients["p-1"].OwnerIdentity)
	}

	err := svc.Create(ctx, "admin", "p-2", "", nil)
	if !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for admin create without owner, got %v", err)
	}
}

func TestCreateRequiresRole(t *testing.T) {
	svc, _, trail := newTestService()
	err := svc.Create(context.Background(), "dr-lee", "p-1", "", nil)
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(trail.actions) != 0 {
		t.Fatalf("rejected mutation must not audit, got %v", trail.actions)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, "alice", "p-1", "", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := svc.Create(ctx, "bob", "p-1", "", nil)
	if !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdateAuthz(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, "alice", "p-1", "", json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Update(ctx, "alice", "p-1", json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if err := svc.Update(ctx, "admin", "p-1", json.RawMessage(`{"v":3}`)); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	err := svc.Update(ctx, "bob", "p-1", json.RawMessage(`{"v":4}`))
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if string(repo.patients["p-1"].Data) != `{"v":3}` {
		t.Fatalf("unexpected data %s", repo.patients["p-1"].Data)
	}
}

func TestDeactivatePreservesDirectLookup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, "alice", "p-1", "", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := svc.Deactivate(ctx, "alice", "p-1")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for owner deactivate, got %v", err)
	}
	if err := svc.Deactivate(ctx, "admin", "p-1"); err != nil {
		t.Fatalf("admin deactivate: %v", err)
	}

	p, err := svc.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("direct get after deactivate: %v", err)
	}
	if p.Exists {
		t.Fatalf("expected deactivated patient")
	}
	if exists, _ := svc.Exists(ctx, "p-1"); exists {
		t.Fatalf("expected Exists to report false")
	}
	if list, _ := svc.List(ctx, 10, 0); len(list) != 0 {
		t.Fatalf("expected deactivated patient out of listing, got %d entries", len(list))
	}

	err = svc.Deactivate(ctx, "admin", "p-1")
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for double deactivate, got %v", err)
	}
}

func TestUpdateDeactivatedPatient(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, "alice", "p-1", "", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(ctx, "admin", "p-1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	err := svc.Update(ctx, "alice", "p-1", json.RawMessage(`{}`))
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAuditFailureAbortsMutation(t *testing.T) {
	svc, _, trail := newTestService()
	trail.err = errors.New("trail unavailable")

	err := svc.Create(context.Background(), "alice", "p-1", "", nil)
	if err == nil {
		t.Fatalf("expected create to fail when the audit write fails")
	}
}
