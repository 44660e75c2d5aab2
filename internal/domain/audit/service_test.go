package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medledger/medledger/internal/ledger"
)

type mockAuditRepo struct {
	records []*Record
}

func (m *mockAuditRepo) Insert(_ context.Context, rec *Record) error {
	for _, r := range m.records {
		if r.ID == rec.ID {
			return nil
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockAuditRepo) GetByID(_ context.Context, id string) (*Record, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *mockAuditRepo) ListRecent(_ context.Context, limit int) ([]*Record, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]*Record, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *mockAuditRepo) ListByTarget(_ context.Context, targetID string, limit int) ([]*Record, error) {
	var out []*Record
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].TargetID == targetID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *mockAuditRepo) Count(_ context.Context) (int, error) { return len(m.records), nil }

func newTestService(at time.Time) (*Service, *mockAuditRepo) {
	repo := &mockAuditRepo{}
	svc := NewService(repo)
	svc.now = func() time.Time { return at }
	return svc, repo
}

func TestRecordDerivesDigestID(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, repo := newTestService(ts)

	id, err := svc.Record(context.Background(), "dr-house", "PrescriptionCreated", "rx-1", "dose=5mg")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if want := DeriveID(ts, "dr-house", "PrescriptionCreated", "rx-1"); id != want {
		t.Fatalf("id = %s, want %s", id, want)
	}
	if len(id) != 64 {
		t.Fatalf("expected hex sha-256 id, got %q", id)
	}
	got, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Actor != "dr-house" || got.Detail != "dose=5mg" {
		t.Fatalf("unexpected record %+v", got)
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestRecordSameSecondSameInputsCollides(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, repo := newTestService(ts)
	ctx := context.Background()

	a, err := svc.Record(ctx, "alice", "PatientUpdated", "p-1", "")
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	b, err := svc.Record(ctx, "alice", "PatientUpdated", "p-1", "")
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical ids within the same second, got %s and %s", a, b)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("expected the collision to keep a single record, got %d", n)
	}
}

func TestRecordRejectsEmptyFields(t *testing.T) {
	svc, _ := newTestService(time.Now())
	_, err := svc.Record(context.Background(), "", "Action", "t-1", "")
	if !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty actor, got %v", err)
	}
	_, err = svc.Record(context.Background(), "alice", "Action", "", "")
	if !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty target, got %v", err)
	}
}

func TestListByTargetFilters(t *testing.T) {
	svc, _ := newTestService(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.Record(ctx, "alice", "PatientCreated", "p-1", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC) }
	if _, err := svc.Record(ctx, "alice", "PatientCreated", "p-2", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	recs, err := svc.ListByTarget(ctx, "p-1", 0)
	if err != nil {
		t.Fatalf("list by target: %v", err)
	}
	if len(recs) != 1 || recs[0].TargetID != "p-1" {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestGetUnknownID(t *testing.T) {
	svc, _ := newTestService(time.Now())
	_, err := svc.Get(context.Background(), "no-such")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
