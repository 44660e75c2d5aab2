package doctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
)

type mockDoctorRepo struct {
	doctors map[string]*Doctor
	reviews []*Review
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[string]*Doctor)}
}

func (m *mockDoctorRepo) Insert(_ context.Context, d *Doctor) error {
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) UpdateStatus(_ context.Context, d *Doctor) error {
	cur, ok := m.doctors[d.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Status = d.Status
	cur.VerifiedAt = d.VerifiedAt
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id string) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) GetByIdentity(_ context.Context, identity string) (*Doctor, error) {
	for _, d := range m.doctors {
		if d.Identity == identity && (d.Status == StatusPending || d.Status == StatusVerified) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, error) {
	var out []*Doctor
	for _, d := range m.doctors {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockDoctorRepo) Has(_ context.Context, id string) (bool, error) {
	_, ok := m.doctors[id]
	return ok, nil
}

func (m *mockDoctorRepo) IdentityBound(_ context.Context, identity string) (bool, error) {
	for _, d := range m.doctors {
		if d.Identity == identity && (d.Status == StatusPending || d.Status == StatusVerified) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDoctorRepo) AddReview(_ context.Context, rev *Review) error {
	cp := *rev
	m.reviews = append(m.reviews, &cp)
	return nil
}

func (m *mockDoctorRepo) ListReviews(_ context.Context, doctorID string) ([]*Review, error) {
	var out []*Review
	for _, rev := range m.reviews {
		if rev.DoctorID == doctorID {
			out = append(out, rev)
		}
	}
	return out, nil
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
}

func (r *recordingAudit) Record(_ context.Context, _, action, _, _ string) (string, error) {
	r.actions = append(r.actions, action)
	return "audit-id", nil
}

type immediateRunner struct{}

func (immediateRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockDoctorRepo, *recordingAudit) {
	repo := newMockDoctorRepo()
	trail := &recordingAudit{}
	roles := stubRoles{
		"admin":    {rbac.RoleAdmin},
		"dr-lee":   {rbac.RoleDoctor},
		"dr-wu":    {rbac.RoleDoctor},
		"verifier": {rbac.RoleVerifier},
		"alice":    {rbac.RolePatient},
	}
	svc := NewService(repo, roles, trail, immediateRunner{})
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, trail
}

func register(t *testing.T, svc *Service, actor, id string) {
	t.Helper()
	if err := svc.Register(context.Background(), actor, id, "", "Dr Lee", "cardiology", "LIC-1"); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestRegisterBindsOwnIdentity(t *testing.T) {
	svc, repo, trail := newTestService()
	register(t, svc, "dr-lee", "d-1")

	d := repo.doctors["d-1"]
	if d.Identity != "dr-lee" || d.Status != StatusPending {
		t.Fatalf("unexpected doctor %+v", d)
	}
	if len(trail.actions) != 1 || trail.actions[0] != "DoctorRegistered" {
		t.Fatalf("expected DoctorRegistered audit, got %v", trail.actions)
	}
}

func TestRegisterRebindRejected(t *testing.T) {
	svc, _, _ := newTestService()
	register(t, svc, "dr-lee", "d-1")

	err := svc.Register(context.Background(), "dr-lee", "d-2", "", "Dr Lee", "", "LIC-2")
	if !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on rebind, got %v", err)
	}
}

func TestTerminalCredentialReleasesIdentity(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	register(t, svc, "dr-lee", "d-1")

	if err := svc.Reject(ctx, "verifier", "d-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.Register(ctx, "dr-lee", "d-2", "", "Dr Lee", "", "LIC-2"); err != nil {
		t.Fatalf("re-registration after rejection should succeed: %v", err)
	}
}

func TestVerifyLifecycle(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	register(t, svc, "dr-lee", "d-1")

	if err := svc.Verify(ctx, "verifier", "d-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	d := repo.doctors["d-1"]
	if d.Status != StatusVerified || d.VerifiedAt == nil {
		t.Fatalf("unexpected verified doctor %+v", d)
	}

	err := svc.Verify(ctx, "verifier", "d-1")
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double verify, got %v", err)
	}
}

func TestRevokeOnlyFromVerified(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	register(t, svc, "dr-lee", "d-1")

	err := svc.Revoke(ctx, "admin", "d-1")
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition revoking pending, got %v", err)
	}
	if err := svc.Verify(ctx, "admin", "d-1"); err != nil {
		t.Fatalf("admin verify: %v", err)
	}
	err = svc.Revoke(ctx, "verifier", "d-1")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for verifier revoke, got %v", err)
	}
	if err := svc.Revoke(ctx, "admin", "d-1"); err != nil {
		t.Fatalf("admin revoke: %v", err)
	}
}

func TestTransitionAuthz(t *testing.T) {
	svc, _, _ := newTestService()
	register(t, svc, "dr-lee", "d-1")

	err := svc.Verify(context.Background(), "alice", "d-1")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for patient verify, got %v", err)
	}
}

func TestReviews(t *testing.T) {
	svc, _, trail := newTestService()
	ctx := context.Background()
	register(t, svc, "dr-lee", "d-1")

	if err := svc.AddReview(ctx, "alice", "d-1", 5, "great"); err != nil {
		t.Fatalf("add review: %v", err)
	}
	for _, rating := range []int{0, 6} {
		if err := svc.AddReview(ctx, "alice", "d-1", rating, ""); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for rating %d, got %v", rating, err)
		}
	}
	if err := svc.AddReview(ctx, "verifier", "d-1", 3, ""); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-patient reviewer")
	}
	if err := svc.AddReview(ctx, "alice", "no-such", 3, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown doctor")
	}

	reviews, err := svc.ListReviews(ctx, "d-1")
	if err != nil || len(reviews) != 1 {
		t.Fatalf("expected one review, got %v err=%v", reviews, err)
	}
	if trail.actions[len(trail.actions)-1] != "DoctorReviewAdded" {
		t.Fatalf("expected DoctorReviewAdded audit, got %v", trail.actions)
	}
}

func TestVerifiedByIdentity(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	register(t, svc, "dr-lee", "d-1")

	_, err := svc.VerifiedByIdentity(ctx, "dr-lee")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for pending credential, got %v", err)
	}
	if err := svc.Verify(ctx, "verifier", "d-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	d, err := svc.VerifiedByIdentity(ctx, "dr-lee")
	if err != nil || d.ID != "d-1" {
		t.Fatalf("expected verified credential d-1, got %+v err=%v", d, err)
	}
}
