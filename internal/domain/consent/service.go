package consent

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/domain/audit"
	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/db"
)

type RoleChecker interface {
	HasRole(ctx context.Context, role rbac.Role, identity string) (bool, error)
}

// PatientDirectory resolves the owner identity of a patient record.
type PatientDirectory interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

type Service struct {
	repo     ConsentRepository
	roles    RoleChecker
	patients PatientDirectory
	audit    audit.Recorder
	runner   db.Runner
	now      func() time.Time
}

func NewService(repo ConsentRepository, roles RoleChecker, patients PatientDirectory, rec audit.Recorder, runner db.Runner) *Service {
	return &Service{repo: repo, roles: roles, patients: patients, audit: rec, runner: runner, now: time.Now}
}

func (s *Service) isAdmin(ctx context.Context, identity string) (bool, error) {
	for _, role := range []rbac.Role{rbac.RoleAdmin, rbac.RoleSuperAdmin} {
		ok, err := s.roles.HasRole(ctx, role, identity)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// actsForPatient reports whether actor owns the patient record or is admin.
func (s *Service) actsForPatient(ctx context.Context, actor, patientID string) (bool, error) {
	owner, err := s.patients.OwnerOf(ctx, patientID)
	if err != nil {
		return false, err
	}
	if actor == owner {
		return true, nil
	}
	return s.isAdmin(ctx, actor)
}

// Grant records a consent. A consent id is never reused, revoked ids
// included.
func (s *Service) Grant(ctx context.Context, actor, id, patientID, grantee, scope, purpose string, validUntil time.Time) error {
	if id == "" || patientID == "" || grantee == "" || scope == "" || validUntil.IsZero() {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		if !validUntil.After(s.now()) {
			return ledger.ErrInvalidInput
		}
		ok, err := s.actsForPatient(ctx, actor, patientID)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrUnauthorized
		}
		taken, err := s.repo.Has(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ledger.ErrAlreadyExists
		}

		c := &Consent{
			ID:         id,
			PatientID:  patientID,
			Grantee:    grantee,
			Scope:      scope,
			Purpose:    purpose,
			ValidUntil: validUntil.UTC(),
			Status:     StatusActive,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.repo.Insert(ctx, c); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ConsentGranted", id, "grantee="+grantee+" scope="+scope)
		return err
	})
}

// Revoke withdraws a consent. The row stays; only its status flips.
func (s *Service) Revoke(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		ok, err := s.actsForPatient(ctx, actor, c.PatientID)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrUnauthorized
		}
		if c.Status == StatusRevoked {
			return ledger.ErrAlreadyRevoked
		}
		if err := s.repo.MarkRevoked(ctx, id, s.now().UTC()); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ConsentRevoked", id, "")
		return err
	})
}

// IsActive combines status and expiry at the moment of the call. A consent
// whose ValidUntil has passed grants nothing even while its status still
// reads active.
func (s *Service) IsActive(ctx context.Context, actor, id string) (bool, error) {
	c, err := s.getFor(ctx, actor, id)
	if err != nil {
		return false, err
	}
	return s.live(c), nil
}

func (s *Service) live(c *Consent) bool {
	return c.Status == StatusActive && !s.now().After(c.ValidUntil)
}

// AllowedFor is the read-path check: does any live consent let grantee read
// the given scope of the patient's data.
func (s *Service) AllowedFor(ctx context.Context, patientID, grantee, scope string) (bool, error) {
	if patientID == "" || grantee == "" || scope == "" {
		return false, nil
	}
	candidates, err := s.repo.ListByGrant(ctx, patientID, grantee, scope)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		if s.live(c) {
			return true, nil
		}
	}
	return false, nil
}

// Get returns a consent to the owning patient, the grantee it names, or an
// admin.
func (s *Service) Get(ctx context.Context, actor, id string) (*Consent, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	return s.getFor(ctx, actor, id)
}

func (s *Service) getFor(ctx context.Context, actor, id string) (*Consent, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != c.Grantee {
		ok, err := s.actsForPatient(ctx, actor, c.PatientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ledger.ErrUnauthorized
		}
	}
	return c, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor, patientID string) ([]*Consent, error) {
	if patientID == "" {
		return nil, ledger.ErrInvalidInput
	}
	ok, err := s.actsForPatient(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrUnauthorized
	}
	return s.repo.ListByPatient(ctx, patientID)
}
