package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
)

type mockConsentRepo struct {
	consents map[string]*Consent
}

func newMockConsentRepo() *mockConsentRepo {
	return &mockConsentRepo{consents: make(map[string]*Consent)}
}

func (m *mockConsentRepo) Insert(_ context.Context, c *Consent) error {
	cp := *c
	m.consents[c.ID] = &cp
	return nil
}

func (m *mockConsentRepo) MarkRevoked(_ context.Context, id string, at time.Time) error {
	cur, ok := m.consents[id]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Status = StatusRevoked
	cur.RevokedAt = &at
	return nil
}

func (m *mockConsentRepo) GetByID(_ context.Context, id string) (*Consent, error) {
	c, ok := m.consents[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockConsentRepo) Has(_ context.Context, id string) (bool, error) {
	_, ok := m.consents[id]
	return ok, nil
}

func (m *mockConsentRepo) ListByPatient(_ context.Context, patientID string) ([]*Consent, error) {
	var out []*Consent
	for _, c := range m.consents {
		if c.PatientID == patientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockConsentRepo) ListByGrant(_ context.Context, patientID, grantee, scope string) ([]*Consent, error) {
	var out []*Consent
	for _, c := range m.consents {
		if c.PatientID == patientID && c.Grantee == grantee && c.Scope == scope {
			cp := *c
			out = append(out, &cp)
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

type stubPatients map[string]string

func (s stubPatients) OwnerOf(_ context.Context, patientID string) (string, error) {
	owner, ok := s[patientID]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return owner, nil
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

type testClock struct {
	at time.Time
}

func (c *testClock) now() time.Time { return c.at }

func (c *testClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestService() (*Service, *testClock, *recordingAudit) {
	repo := newMockConsentRepo()
	trail := &recordingAudit{}
	clock := &testClock{at: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	roles := stubRoles{"admin": {rbac.RoleAdmin}}
	patients := stubPatients{"p-1": "alice", "p-2": "bob"}
	svc := NewService(repo, roles, patients, trail, immediateRunner{})
	svc.now = clock.now
	return svc, clock, trail
}

func grant(t *testing.T, svc *Service, clock *testClock, actor, id, patientID, grantee, scope string, ttl time.Duration) {
	t.Helper()
	if err := svc.Grant(context.Background(), actor, id, patientID, grantee, scope, "treatment", clock.at.Add(ttl)); err != nil {
		t.Fatalf("grant %s: %v", id, err)
	}
}

func TestGrantAndAllowedFor(t *testing.T) {
	svc, clock, trail := newTestService()
	ctx := context.Background()
	grant(t, svc, clock, "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, time.Hour)

	ok, err := svc.AllowedFor(ctx, "p-1", "dr-lee", ScopeMedicalRecords)
	if err != nil || !ok {
		t.Fatalf("expected consent to allow, ok=%v err=%v", ok, err)
	}
	if ok, _ := svc.AllowedFor(ctx, "p-1", "dr-lee", ScopePrescriptions); ok {
		t.Fatalf("scope must not bleed across")
	}
	if ok, _ := svc.AllowedFor(ctx, "p-1", "dr-wu", ScopeMedicalRecords); ok {
		t.Fatalf("grantee must not bleed across")
	}
	if len(trail.actions) != 1 || trail.actions[0] != "ConsentGranted" {
		t.Fatalf("expected ConsentGranted audit, got %v", trail.actions)
	}
}

func TestExpiryIsReadTime(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	grant(t, svc, clock, "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, time.Hour)

	clock.advance(2 * time.Hour)
	if ok, _ := svc.AllowedFor(ctx, "p-1", "dr-lee", ScopeMedicalRecords); ok {
		t.Fatalf("expired consent must not allow")
	}
	active, err := svc.IsActive(ctx, "alice", "c-1")
	if err != nil || active {
		t.Fatalf("expected inactive, active=%v err=%v", active, err)
	}
	// Status on the row is untouched; only the read answer changes.
	c, err := svc.Get(ctx, "alice", "c-1")
	if err != nil || c.Status != StatusActive {
		t.Fatalf("expected stored status active, got %+v err=%v", c, err)
	}
}

func TestGrantAuthz(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()

	err := svc.Grant(ctx, "bob", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, "x", clock.at.Add(time.Hour))
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if err := svc.Grant(ctx, "admin", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, "x", clock.at.Add(time.Hour)); err != nil {
		t.Fatalf("admin grant: %v", err)
	}
}

func TestGrantPastExpiry(t *testing.T) {
	svc, clock, _ := newTestService()
	err := svc.Grant(context.Background(), "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, "x", clock.at.Add(-time.Minute))
	if !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for past expiry, got %v", err)
	}
}

func TestIDNeverReused(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	grant(t, svc, clock, "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, time.Hour)

	if err := svc.Revoke(ctx, "alice", "c-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	err := svc.Grant(ctx, "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, "x", clock.at.Add(time.Hour))
	if !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists re-creating a revoked id, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	svc, clock, trail := newTestService()
	ctx := context.Background()
	grant(t, svc, clock, "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, time.Hour)

	err := svc.Revoke(ctx, "bob", "c-1")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner revoke, got %v", err)
	}
	if err := svc.Revoke(ctx, "alice", "c-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := svc.AllowedFor(ctx, "p-1", "dr-lee", ScopeMedicalRecords); ok {
		t.Fatalf("revoked consent must not allow")
	}
	err = svc.Revoke(ctx, "alice", "c-1")
	if !errors.Is(err, ledger.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	err = svc.Revoke(ctx, "alice", "no-such")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if trail.actions[len(trail.actions)-1] != "ConsentRevoked" {
		t.Fatalf("expected ConsentRevoked audit, got %v", trail.actions)
	}
}

func TestReadAccess(t *testing.T) {
	svc, clock, _ := newTestService()
	ctx := context.Background()
	grant(t, svc, clock, "alice", "c-1", "p-1", "dr-lee", ScopeMedicalRecords, time.Hour)

	if _, err := svc.Get(ctx, "bob", "c-1"); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bystander, got %v", err)
	}
	for _, actor := range []string{"alice", "dr-lee", "admin"} {
		if _, err := svc.Get(ctx, actor, "c-1"); err != nil {
			t.Fatalf("get as %s: %v", actor, err)
		}
	}

	if _, err := svc.ListByPatient(ctx, "dr-lee", "p-1"); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("grantee must not list the patient's consents, got %v", err)
	}
	consents, err := svc.ListByPatient(ctx, "alice", "p-1")
	if err != nil || len(consents) != 1 {
		t.Fatalf("owner listing: %v err=%v", consents, err)
	}
}
