package prescription

import (
	"context"
	"fmt"
	"time"

	"github.com/medledger/medledger/internal/domain/audit"
	"github.com/medledger/medledger/internal/domain/consent"
	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/db"
)

type RoleChecker interface {
	HasRole(ctx context.Context, role rbac.Role, identity string) (bool, error)
}

type PatientDirectory interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

type DoctorDirectory interface {
	IdentityOf(ctx context.Context, doctorID string) (string, error)
	VerifiedIDByIdentity(ctx context.Context, identity string) (string, error)
}

// ConsentChecker gates reads by callers who are neither owner, prescriber,
// nor admin.
type ConsentChecker interface {
	AllowedFor(ctx context.Context, patientID, grantee, scope string) (bool, error)
}

type Service struct {
	repo     PrescriptionRepository
	roles    RoleChecker
	patients PatientDirectory
	doctors  DoctorDirectory
	consents ConsentChecker
	audit    audit.Recorder
	runner   db.Runner
	now      func() time.Time
}

func NewService(repo PrescriptionRepository, roles RoleChecker, patients PatientDirectory, doctors DoctorDirectory, consents ConsentChecker, rec audit.Recorder, runner db.Runner) *Service {
	return &Service{repo: repo, roles: roles, patients: patients, doctors: doctors, consents: consents, audit: rec, runner: runner, now: time.Now}
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

// Create issues a prescription. The caller must be bound to a verified
// doctor credential; an admin names the prescribing credential explicitly.
func (s *Service) Create(ctx context.Context, actor, id, patientID, doctorID, medication, dosage, instructions string, expiresAt time.Time) error {
	if id == "" || patientID == "" || medication == "" || expiresAt.IsZero() {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		switch {
		case admin:
			if doctorID == "" {
				return ledger.ErrInvalidInput
			}
			if _, err := s.doctors.IdentityOf(ctx, doctorID); err != nil {
				return err
			}
		default:
			verifiedID, err := s.doctors.VerifiedIDByIdentity(ctx, actor)
			if err != nil {
				return fmt.Errorf("no verified credential for caller: %w", ledger.ErrUnauthorized)
			}
			doctorID = verifiedID
		}
		if !expiresAt.After(s.now()) {
			return fmt.Errorf("expiry not in the future: %w", ledger.ErrInvalidInput)
		}
		if _, err := s.patients.OwnerOf(ctx, patientID); err != nil {
			return err
		}
		taken, err := s.repo.Has(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ledger.ErrAlreadyExists
		}

		issuedAt := s.now().UTC()
		p := &Prescription{
			ID:                id,
			PatientID:         patientID,
			DoctorID:          doctorID,
			Medication:        medication,
			Dosage:            dosage,
			Instructions:      instructions,
			IssuedAt:          issuedAt,
			ExpiresAt:         expiresAt.UTC(),
			Status:            StatusActive,
			VerificationToken: DeriveToken(id, issuedAt),
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PrescriptionCreated", id, "patient="+patientID+" doctor="+doctorID)
		return err
	})
}

// Fill dispenses an active prescription. Pharmacist or admin; refuses past
// expiry without changing the row, the lazy-expiry sweep does that.
func (s *Service) Fill(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if !admin {
			isPharmacist, err := s.roles.HasRole(ctx, rbac.RolePharmacist, actor)
			if err != nil {
				return err
			}
			if !isPharmacist {
				return ledger.ErrUnauthorized
			}
		}

		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusActive {
			return fmt.Errorf("%s -> filled: %w", p.Status, ledger.ErrInvalidTransition)
		}
		now := s.now()
		if now.After(p.ExpiresAt) {
			return ledger.ErrExpired
		}

		at := now.UTC()
		p.Status = StatusFilled
		p.PharmacistID = actor
		p.FilledAt = &at
		p.Dispensed = true
		if err := s.repo.UpdateStatus(ctx, p); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PrescriptionFilled", id, "pharmacist="+actor)
		return err
	})
}

// Cancel withdraws an active prescription. Issuing doctor or admin.
func (s *Service) Cancel(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if !admin {
			prescriber, err := s.doctors.IdentityOf(ctx, p.DoctorID)
			if err != nil {
				return err
			}
			if actor != prescriber {
				return ledger.ErrUnauthorized
			}
		}
		if p.Status != StatusActive {
			return fmt.Errorf("%s -> cancelled: %w", p.Status, ledger.ErrInvalidTransition)
		}

		p.Status = StatusCancelled
		if err := s.repo.UpdateStatus(ctx, p); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PrescriptionCancelled", id, "")
		return err
	})
}

// MarkExpired flips an overdue active prescription to expired. Deliberately
// permissionless; any caller may run the sweep, the clock decides.
func (s *Service) MarkExpired(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusActive {
			return fmt.Errorf("%s -> expired: %w", p.Status, ledger.ErrInvalidTransition)
		}
		if !s.now().After(p.ExpiresAt) {
			return fmt.Errorf("not yet past expiry: %w", ledger.ErrInvalidTransition)
		}

		p.Status = StatusExpired
		if err := s.repo.UpdateStatus(ctx, p); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PrescriptionExpired", id, "")
		return err
	})
}

// Get returns a prescription to its patient owner, its prescriber, an
// admin, or a grantee holding live prescription-scope consent.
func (s *Service) Get(ctx context.Context, actor, id string) (*Prescription, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed, err := s.mayRead(ctx, actor, p.PatientID, p.DoctorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ledger.ErrUnauthorized
	}
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor, patientID string, limit, offset int) ([]*Prescription, error) {
	if patientID == "" {
		return nil, ledger.ErrInvalidInput
	}
	allowed, err := s.mayRead(ctx, actor, patientID, "")
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ledger.ErrUnauthorized
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) mayRead(ctx context.Context, actor, patientID, doctorID string) (bool, error) {
	owner, err := s.patients.OwnerOf(ctx, patientID)
	if err != nil {
		return false, err
	}
	if actor == owner {
		return true, nil
	}
	if doctorID != "" {
		prescriber, err := s.doctors.IdentityOf(ctx, doctorID)
		if err == nil && actor == prescriber {
			return true, nil
		}
	}
	admin, err := s.isAdmin(ctx, actor)
	if err != nil || admin {
		return admin, err
	}
	return s.consents.AllowedFor(ctx, patientID, actor, consent.ScopePrescriptions)
}

// Verify answers the pharmacy-counter question: may this prescription be
// dispensed right now. Every failure, unknown id included, is a plain false.
func (s *Service) Verify(ctx context.Context, id, token string) bool {
	if id == "" || token == "" {
		return false
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false
	}
	if !tokenMatches(p.VerificationToken, token) {
		return false
	}
	if p.Status != StatusActive || p.Dispensed {
		return false
	}
	return !s.now().After(p.ExpiresAt)
}
