package appointment

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

type PatientDirectory interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

// DoctorDirectory resolves the identity behind a credential id.
type DoctorDirectory interface {
	IdentityOf(ctx context.Context, doctorID string) (string, error)
}

var statusEdges = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
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
	repo     AppointmentRepository
	roles    RoleChecker
	patients PatientDirectory
	doctors  DoctorDirectory
	audit    audit.Recorder
	runner   db.Runner
	now      func() time.Time
}

func NewService(repo AppointmentRepository, roles RoleChecker, patients PatientDirectory, doctors DoctorDirectory, rec audit.Recorder, runner db.Runner) *Service {
	return &Service{repo: repo, roles: roles, patients: patients, doctors: doctors, audit: rec, runner: runner, now: time.Now}
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

func (s *Service) hasAnyRole(ctx context.Context, identity string, roles ...rbac.Role) (bool, error) {
	for _, role := range roles {
		ok, err := s.roles.HasRole(ctx, role, identity)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Create schedules an appointment. The slot must lie strictly in the future
// at the moment of creation; both referenced records must exist.
func (s *Service) Create(ctx context.Context, actor, id, patientID, doctorID string, scheduledAt time.Time, reason string) error {
	if id == "" || patientID == "" || doctorID == "" || scheduledAt.IsZero() {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.hasAnyRole(ctx, actor, rbac.RolePatient, rbac.RoleDoctor, rbac.RoleAdmin, rbac.RoleSuperAdmin)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrUnauthorized
		}
		if !scheduledAt.After(s.now()) {
			return fmt.Errorf("scheduled time not in the future: %w", ledger.ErrInvalidInput)
		}
		if _, err := s.patients.OwnerOf(ctx, patientID); err != nil {
			return err
		}
		if _, err := s.doctors.IdentityOf(ctx, doctorID); err != nil {
			return err
		}
		taken, err := s.repo.Has(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ledger.ErrAlreadyExists
		}

		now := s.now().UTC()
		a := &Appointment{
			ID:          id,
			PatientID:   patientID,
			DoctorID:    doctorID,
			ScheduledAt: scheduledAt.UTC(),
			Reason:      reason,
			Status:      StatusScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, a); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "AppointmentCreated", id, "patient="+patientID+" doctor="+doctorID)
		return err
	})
}

// Confirm is doctor-side: the assigned doctor's identity or an admin.
func (s *Service) Confirm(ctx context.Context, actor, id string) error {
	return s.transition(ctx, actor, id, StatusConfirmed, "AppointmentConfirmed", "", false)
}

// Complete closes out a confirmed appointment, optionally attaching notes.
func (s *Service) Complete(ctx context.Context, actor, id, notes string) error {
	return s.transition(ctx, actor, id, StatusCompleted, "AppointmentCompleted", notes, false)
}

// Cancel is open to the owning patient, the assigned doctor, or an admin.
func (s *Service) Cancel(ctx context.Context, actor, id string) error {
	return s.transition(ctx, actor, id, StatusCancelled, "AppointmentCancelled", "", true)
}

func (s *Service) transition(ctx context.Context, actor, id string, to Status, action, notes string, patientMay bool) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		allowed, err := s.mayActOn(ctx, actor, a, patientMay)
		if err != nil {
			return err
		}
		if !allowed {
			return ledger.ErrUnauthorized
		}
		if !canTransition(a.Status, to) {
			return fmt.Errorf("%s -> %s: %w", a.Status, to, ledger.ErrInvalidTransition)
		}

		a.Status = to
		if notes != "" {
			a.Notes = notes
		}
		a.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateStatus(ctx, a); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, action, id, "")
		return err
	})
}

func (s *Service) mayActOn(ctx context.Context, actor string, a *Appointment, patientMay bool) (bool, error) {
	admin, err := s.isAdmin(ctx, actor)
	if err != nil || admin {
		return admin, err
	}
	doctorIdentity, err := s.doctors.IdentityOf(ctx, a.DoctorID)
	if err != nil {
		return false, err
	}
	if actor == doctorIdentity {
		return true, nil
	}
	if !patientMay {
		return false, nil
	}
	owner, err := s.patients.OwnerOf(ctx, a.PatientID)
	if err != nil {
		return false, err
	}
	return actor == owner, nil
}

// Get returns an appointment to its participants: the owning patient, the
// assigned doctor, or an admin.
func (s *Service) Get(ctx context.Context, actor, id string) (*Appointment, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed, err := s.mayActOn(ctx, actor, a, true)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ledger.ErrUnauthorized
	}
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor, patientID string, limit, offset int) ([]*Appointment, error) {
	if patientID == "" {
		return nil, ledger.ErrInvalidInput
	}
	admin, err := s.isAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !admin {
		owner, err := s.patients.OwnerOf(ctx, patientID)
		if err != nil {
			return nil, err
		}
		if actor != owner {
			return nil, ledger.ErrUnauthorized
		}
	}
	return s.repo.ListByPatient(ctx, patientID, normalizeLimit(limit), normalizeOffset(offset))
}

func (s *Service) ListByDoctor(ctx context.Context, actor, doctorID string, limit, offset int) ([]*Appointment, error) {
	if doctorID == "" {
		return nil, ledger.ErrInvalidInput
	}
	admin, err := s.isAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !admin {
		identity, err := s.doctors.IdentityOf(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		if actor != identity {
			return nil, ledger.ErrUnauthorized
		}
	}
	return s.repo.ListByDoctor(ctx, doctorID, normalizeLimit(limit), normalizeOffset(offset))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
