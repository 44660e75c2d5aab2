package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/medledger/medledger/internal/domain/audit"
	"github.com/medledger/medledger/internal/domain/rbac"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/db"
)

type RoleChecker interface {
	HasRole(ctx context.Context, role rbac.Role, identity string) (bool, error)
}

// statusEdges is the allowed-transition table. Absent statuses are terminal.
var statusEdges = map[Status][]Status{
	StatusPending:  {StatusVerified, StatusRejected},
	StatusVerified: {StatusRevoked},
}

func canTransition(from, to Status) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Service struct {
	repo   DoctorRepository
	roles  RoleChecker
	audit  audit.Recorder
	runner db.Runner
	now    func() time.Time
}

func NewService(repo DoctorRepository, roles RoleChecker, rec audit.Recorder, runner db.Runner) *Service {
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

// Register creates a pending credential. A caller with the doctor role binds
// their own identity; an admin names the identity explicitly.
func (s *Service) Register(ctx context.Context, actor, id, identity, name, specialty, license string) error {
	if id == "" || name == "" || license == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		switch {
		case admin:
			if identity == "" {
				return ledger.ErrInvalidInput
			}
		default:
			isDoctor, err := s.roles.HasRole(ctx, rbac.RoleDoctor, actor)
			if err != nil {
				return err
			}
			if !isDoctor {
				return ledger.ErrUnauthorized
			}
			identity = actor
		}

		taken, err := s.repo.Has(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ledger.ErrAlreadyExists
		}
		bound, err := s.repo.IdentityBound(ctx, identity)
		if err != nil {
			return err
		}
		if bound {
			return fmt.Errorf("identity already bound to a credential: %w", ledger.ErrAlreadyExists)
		}

		d := &Doctor{
			ID:            id,
			Identity:      identity,
			Name:          name,
			Specialty:     specialty,
			LicenseNumber: license,
			Status:        StatusPending,
			CreatedAt:     s.now().UTC(),
		}
		if err := s.repo.Insert(ctx, d); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "DoctorRegistered", id, "identity="+identity)
		return err
	})
}

// Verify moves a pending credential to verified. Verifier or admin.
func (s *Service) Verify(ctx context.Context, actor, id string) error {
	return s.transition(ctx, actor, id, StatusVerified, "DoctorVerified", rbac.RoleVerifier)
}

// Reject refuses a pending credential. Verifier or admin. Terminal.
func (s *Service) Reject(ctx context.Context, actor, id string) error {
	return s.transition(ctx, actor, id, StatusRejected, "DoctorRejected", rbac.RoleVerifier)
}

// Revoke withdraws a verified credential. Admin only. Terminal.
func (s *Service) Revoke(ctx context.Context, actor, id string) error {
	return s.transition(ctx, actor, id, StatusRevoked, "DoctorRevoked", "")
}

// transition applies a status edge after checking that the actor is an admin
// or holds allowedRole (empty means admin only).
func (s *Service) transition(ctx context.Context, actor, id string, to Status, action string, allowedRole rbac.Role) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		admin, err := s.isAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if !admin {
			if allowedRole == "" {
				return ledger.ErrUnauthorized
			}
			ok, err := s.roles.HasRole(ctx, allowedRole, actor)
			if err != nil {
				return err
			}
			if !ok {
				return ledger.ErrUnauthorized
			}
		}

		d, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(d.Status, to) {
			return fmt.Errorf("%s -> %s: %w", d.Status, to, ledger.ErrInvalidTransition)
		}

		d.Status = to
		if to == StatusVerified {
			at := s.now().UTC()
			d.VerifiedAt = &at
		}
		if err := s.repo.UpdateStatus(ctx, d); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, action, id, "")
		return err
	})
}

// AddReview appends a patient rating. Ratings stay forever.
func (s *Service) AddReview(ctx context.Context, actor, doctorID string, rating int, comment string) error {
	if doctorID == "" || rating < 1 || rating > 5 {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		isPatient, err := s.roles.HasRole(ctx, rbac.RolePatient, actor)
		if err != nil {
			return err
		}
		if !isPatient {
			return ledger.ErrUnauthorized
		}
		has, err := s.repo.Has(ctx, doctorID)
		if err != nil {
			return err
		}
		if !has {
			return ledger.ErrNotFound
		}
		rev := &Review{
			DoctorID:  doctorID,
			Reviewer:  actor,
			Rating:    rating,
			Comment:   comment,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.AddReview(ctx, rev); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "DoctorReviewAdded", doctorID, fmt.Sprintf("rating=%d", rating))
		return err
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Doctor, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Doctor, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListReviews(ctx context.Context, doctorID string) ([]*Review, error) {
	if doctorID == "" {
		return nil, ledger.ErrInvalidInput
	}
	return s.repo.ListReviews(ctx, doctorID)
}

// IdentityOf resolves the identity bound to a credential id. Appointment
// and prescription checks use it to recognize the assigned doctor.
func (s *Service) IdentityOf(ctx context.Context, id string) (string, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return d.Identity, nil
}

// IDByIdentity resolves the live (pending or verified) credential id bound
// to an identity.
func (s *Service) IDByIdentity(ctx context.Context, identity string) (string, error) {
	d, err := s.repo.GetByIdentity(ctx, identity)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// VerifiedIDByIdentity resolves the verified credential id bound to an
// identity. The prescription store uses this to decide who may prescribe.
func (s *Service) VerifiedIDByIdentity(ctx context.Context, identity string) (string, error) {
	d, err := s.VerifiedByIdentity(ctx, identity)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// VerifiedByIdentity resolves the verified credential bound to an identity.
func (s *Service) VerifiedByIdentity(ctx context.Context, identity string) (*Doctor, error) {
	d, err := s.repo.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusVerified {
		return nil, ledger.ErrNotFound
	}
	return d, nil
}
