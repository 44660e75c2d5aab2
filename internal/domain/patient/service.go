package patient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/medledger/medledger/internal/domain/audit"
	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/db"
)

// RoleChecker is the slice of the role registry this store needs.
type RoleChecker interface {
	HasRole(ctx context.Context, role rbac.Role, identity string) (bool, error)
}

type Service struct {
	repo   PatientRepository
	roles  RoleChecker
	audit  audit.Recorder
	runner db.Runner
	now    func() time.Time
}

func NewService(repo PatientRepository, roles RoleChecker, rec audit.Recorder, runner db.Runner) *Service {
	return &Service{repo: repo, roles: roles, audit: rec, runner: runner, now: time.Now}
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

// Create registers a patient. A caller with the patient role becomes the
// owner; an admin supplies the owner explicitly.
func (s *Service) Create(ctx context.Context, actor, id, owner string, data json.RawMessage) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		switch {
		case admin:
			if owner == "" {
				return ledger.ErrInvalidInput
			}
		default:
			isPatient, err := s.roles.HasRole(ctx, rbac.RolePatient, actor)
			if err != nil {
				return err
			}
			if !isPatient {
				return ledger.ErrUnauthorized
			}
			owner = actor
		}

		taken, err := s.repo.Has(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ledger.ErrAlreadyExists
		}

		now := s.now().UTC()
		p := &Patient{
			ID:            id,
			OwnerIdentity: owner,
			Data:          data,
			Exists:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PatientCreated", id, "owner="+owner)
		return err
	})
}

// Update replaces the demographic blob. Owner or admin only.
func (s *Service) Update(ctx context.Context, actor, id string, data json.RawMessage) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor != p.OwnerIdentity {
			admin, err := s.isAdmin(ctx, actor)
			if err != nil {
				return err
			}
			if !admin {
				return ledger.ErrUnauthorized
			}
		}
		if !p.Exists {
			return ledger.ErrInvalidTransition
		}

		p.Data = data
		p.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateData(ctx, p); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PatientUpdated", id, "")
		return err
	})
}

// Deactivate soft-deletes a patient. Admin only; the row stays readable by
// direct id forever.
func (s *Service) Deactivate(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if !admin {
			return ledger.ErrUnauthorized
		}
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !p.Exists {
			return ledger.ErrInvalidTransition
		}
		if err := s.repo.SetExists(ctx, id, false, s.now().UTC()); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "PatientDeactivated", id, "")
		return err
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// OwnerOf resolves the identity that owns a patient record. Other stores
// use this to decide whether a caller acts as the record's owner.
func (s *Service) OwnerOf(ctx context.Context, id string) (string, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.OwnerIdentity, nil
}

// Exists reports the soft-existence flag; unknown ids are simply false.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}
