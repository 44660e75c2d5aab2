package medrecord

import (
	"context"
	"encoding/json"
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
	IDByIdentity(ctx context.Context, identity string) (string, error)
	IdentityOf(ctx context.Context, doctorID string) (string, error)
}

type ConsentChecker interface {
	AllowedFor(ctx context.Context, patientID, grantee, scope string) (bool, error)
}

type Service struct {
	repo     RecordRepository
	roles    RoleChecker
	patients PatientDirectory
	doctors  DoctorDirectory
	consents ConsentChecker
	audit    audit.Recorder
	runner   db.Runner
	now      func() time.Time
}

func NewService(repo RecordRepository, roles RoleChecker, patients PatientDirectory, doctors DoctorDirectory, consents ConsentChecker, rec audit.Recorder, runner db.Runner) *Service {
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

// Create files a record reference. A patient uploads to their own chart
// under the self-uploaded sentinel; a doctor files under their credential;
// an admin names the treating credential (or the sentinel) explicitly.
func (s *Service) Create(ctx context.Context, actor, id, patientID, doctorID, recordType, contentHash string, metadata json.RawMessage) error {
	if id == "" || patientID == "" || recordType == "" || contentHash == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		owner, err := s.patients.OwnerOf(ctx, patientID)
		if err != nil {
			return err
		}

		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		switch {
		case admin:
			if doctorID == "" {
				doctorID = SelfUploaded
			}
		default:
			if credID, err := s.doctors.IDByIdentity(ctx, actor); err == nil {
				doctorID = credID
				break
			}
			isPatient, err := s.roles.HasRole(ctx, rbac.RolePatient, actor)
			if err != nil {
				return err
			}
			if !isPatient || actor != owner {
				return ledger.ErrUnauthorized
			}
			doctorID = SelfUploaded
		}

		taken, err := s.repo.Has(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ledger.ErrAlreadyExists
		}

		now := s.now().UTC()
		rec := &Record{
			ID:          id,
			PatientID:   patientID,
			DoctorID:    doctorID,
			RecordType:  recordType,
			ContentHash: contentHash,
			Metadata:    metadata,
			UploadedBy:  actor,
			Exists:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, rec); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "MedicalRecordCreated", id, "patient="+patientID+" type="+recordType)
		return err
	})
}

// UpdateMetadata replaces the metadata blob. Uploader or admin.
func (s *Service) UpdateMetadata(ctx context.Context, actor, id string, metadata json.RawMessage) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor != rec.UploadedBy {
			admin, err := s.isAdmin(ctx, actor)
			if err != nil {
				return err
			}
			if !admin {
				return ledger.ErrUnauthorized
			}
		}
		if !rec.Exists {
			return ledger.ErrInvalidTransition
		}

		rec.Metadata = metadata
		rec.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateMetadata(ctx, rec); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "MedicalRecordUpdated", id, "")
		return err
	})
}

// Delete soft-deletes a record. Uploader or admin. The row stays reachable
// by direct id; only the patient's listing forgets it.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor != rec.UploadedBy {
			admin, err := s.isAdmin(ctx, actor)
			if err != nil {
				return err
			}
			if !admin {
				return ledger.ErrUnauthorized
			}
		}
		if !rec.Exists {
			return fmt.Errorf("already deleted: %w", ledger.ErrInvalidTransition)
		}
		if err := s.repo.SetExists(ctx, id, false, s.now().UTC()); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "MedicalRecordDeleted", id, "")
		return err
	})
}

// Get returns a record to the patient owner, the treating doctor, the
// uploader, an admin, or a grantee holding live record-scope consent.
// Soft-deleted records still resolve here.
func (s *Service) Get(ctx context.Context, actor, id string) (*Record, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == rec.UploadedBy {
		return rec, nil
	}
	allowed, err := s.mayRead(ctx, actor, rec.PatientID, rec.DoctorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ledger.ErrUnauthorized
	}
	return rec, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor, patientID string, limit, offset int) ([]*Record, error) {
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
	if doctorID != "" && doctorID != SelfUploaded {
		treating, err := s.doctors.IdentityOf(ctx, doctorID)
		if err == nil && actor == treating {
			return true, nil
		}
	}
	admin, err := s.isAdmin(ctx, actor)
	if err != nil || admin {
		return admin, err
	}
	return s.consents.AllowedFor(ctx, patientID, actor, consent.ScopeMedicalRecords)
}
