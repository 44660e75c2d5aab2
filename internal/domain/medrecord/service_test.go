package medrecord

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
)

type mockRecordRepo struct {
	records map[string]*Record
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[string]*Record)}
}

func (m *mockRecordRepo) Insert(_ context.Context, rec *Record) error {
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRecordRepo) UpdateMetadata(_ context.Context, rec *Record) error {
	cur, ok := m.records[rec.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Metadata = rec.Metadata
	cur.UpdatedAt = rec.UpdatedAt
	return nil
}

func (m *mockRecordRepo) SetExists(_ context.Context, id string, exists bool, at time.Time) error {
	cur, ok := m.records[id]
	if !ok {
		return ledger.ErrNotFound
	}
	cur.Exists = exists
	cur.UpdatedAt = at
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id string) (*Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRecordRepo) Has(_ context.Context, id string) (bool, error) {
	_, ok := m.records[id]
	return ok, nil
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*Record, error) {
	var out []*Record
	for _, rec := range m.records {
		if rec.PatientID == patientID && rec.Exists {
			cp := *rec
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

type stubDoctors struct {
	byIdentity map[string]string
	byID       map[string]string
}

func (s stubDoctors) IDByIdentity(_ context.Context, identity string) (string, error) {
	id, ok := s.byIdentity[identity]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return id, nil
}

func (s stubDoctors) IdentityOf(_ context.Context, doctorID string) (string, error) {
	identity, ok := s.byID[doctorID]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return identity, nil
}

type stubConsents map[string]bool

func (s stubConsents) AllowedFor(_ context.Context, patientID, grantee, scope string) (bool, error) {
	return s[patientID+"|"+grantee+"|"+scope], nil
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

func newTestService() (*Service, *mockRecordRepo, *recordingAudit) {
	repo := newMockRecordRepo()
	trail := &recordingAudit{}
	roles := stubRoles{
		"admin":  {rbac.RoleAdmin},
		"alice":  {rbac.RolePatient},
		"bob":    {rbac.RolePatient},
		"dr-lee": {rbac.RoleDoctor},
	}
	doctors := stubDoctors{
		byIdentity: map[string]string{"dr-lee": "d-1"},
		byID:       map[string]string{"d-1": "dr-lee"},
	}
	consents := stubConsents{"p-1|ins-co|medical-records": true}
	svc := NewService(repo, roles, stubPatients{"p-1": "alice", "p-2": "bob"}, doctors, consents, trail, immediateRunner{})
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, trail
}

func file(t *testing.T, svc *Service, actor, id string) {
	t.Helper()
	if err := svc.Create(context.Background(), actor, id, "p-1", "", "lab-result", "hash-1", nil); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestPatientSelfUpload(t *testing.T) {
	svc, repo, trail := newTestService()
	file(t, svc, "alice", "r-1")

	rec := repo.records["r-1"]
	if rec.DoctorID != SelfUploaded || rec.UploadedBy != "alice" || !rec.Exists {
		t.Fatalf("unexpected record %+v", rec)
	}
	if trail.actions[0] != "MedicalRecordCreated" {
		t.Fatalf("expected MedicalRecordCreated audit, got %v", trail.actions)
	}
}

func TestDoctorUploadUsesCredential(t *testing.T) {
	svc, repo, _ := newTestService()
	file(t, svc, "dr-lee", "r-1")

	if repo.records["r-1"].DoctorID != "d-1" {
		t.Fatalf("expected credential id on doctor upload, got %s", repo.records["r-1"].DoctorID)
	}
}

func TestPatientCannotUploadToOtherChart(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.Create(context.Background(), "bob", "r-1", "p-1", "", "lab-result", "h", nil)
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSoftDeleteKeepsDirectLookup(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	file(t, svc, "alice", "r-1")

	if err := svc.Delete(ctx, "alice", "r-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec, err := svc.Get(ctx, "alice", "r-1")
	if err != nil {
		t.Fatalf("direct get after delete: %v", err)
	}
	if rec.Exists {
		t.Fatalf("expected soft-deleted record")
	}
	list, err := svc.ListByPatient(ctx, "alice", "p-1", 10, 0)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected deleted record out of listing, got %v err=%v", list, err)
	}

	err = svc.Delete(ctx, "alice", "r-1")
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double delete, got %v", err)
	}
}

func TestDeleteAuthz(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	file(t, svc, "alice", "r-1")

	err := svc.Delete(ctx, "bob", "r-1")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Delete(ctx, "admin", "r-1"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestUpdateMetadata(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	file(t, svc, "alice", "r-1")

	if err := svc.UpdateMetadata(ctx, "alice", "r-1", json.RawMessage(`{"note":"x"}`)); err != nil {
		t.Fatalf("uploader update: %v", err)
	}
	if string(repo.records["r-1"].Metadata) != `{"note":"x"}` {
		t.Fatalf("metadata not replaced")
	}
	err := svc.UpdateMetadata(ctx, "bob", "r-1", nil)
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestConsentGatedReads(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	file(t, svc, "alice", "r-1")

	for _, actor := range []string{"alice", "admin", "ins-co"} {
		if _, err := svc.Get(ctx, actor, "r-1"); err != nil {
			t.Fatalf("get as %s: %v", actor, err)
		}
	}
	_, err := svc.Get(ctx, "bob", "r-1")
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for consentless reader, got %v", err)
	}
	_, err = svc.ListByPatient(ctx, "bob", "p-1", 10, 0)
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized listing without consent, got %v", err)
	}
	if _, err := svc.ListByPatient(ctx, "ins-co", "p-1", 10, 0); err != nil {
		t.Fatalf("consented listing: %v", err)
	}
}

func TestTreatingDoctorReads(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	file(t, svc, "dr-lee", "r-1")

	if _, err := svc.Get(ctx, "dr-lee", "r-1"); err != nil {
		t.Fatalf("treating doctor get: %v", err)
	}
}
