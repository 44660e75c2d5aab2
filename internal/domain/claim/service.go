package claim

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

var statusEdges = map[Status][]Status{
	StatusSubmitted: {StatusVerified, StatusRejected},
	StatusVerified:  {StatusApproved, StatusRejected},
	StatusApproved:  {StatusPaid},
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
	repo     ClaimRepository
	roles    RoleChecker
	patients PatientDirectory
	audit    audit.Recorder
	runner   db.Runner
	now      func() time.Time
}

func NewService(repo ClaimRepository, roles RoleChecker, patients PatientDirectory, rec audit.Recorder, runner db.Runner) *Service {
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

func (s *Service) hasAnyRole(ctx context.Context, identity string, roles ...rbac.Role) (bool, error) {
	for _, role := range roles {
		ok, err := s.roles.HasRole(ctx, role, identity)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Submit opens a claim against a policy. Patient, doctor, or admin; the
// claimed amount must be positive.
func (s *Service) Submit(ctx context.Context, actor, id, policyNumber, patientID, providerID string, claimedAmount int64, documentRefs []string) error {
	if id == "" || policyNumber == "" || patientID == "" {
		return ledger.ErrInvalidInput
	}
	if claimedAmount <= 0 {
		return fmt.Errorf("claimed amount must be positive: %w", ledger.ErrInvalidInput)
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.hasAnyRole(ctx, actor, rbac.RolePatient, rbac.RoleDoctor, rbac.RoleAdmin, rbac.RoleSuperAdmin)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrUnauthorized
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

		now := s.now().UTC()
		c := &Claim{
			ID:            id,
			PolicyNumber:  policyNumber,
			PatientID:     patientID,
			ProviderID:    providerID,
			ClaimedAmount: claimedAmount,
			Status:        StatusSubmitted,
			DocumentRefs:  documentRefs,
			SubmittedBy:   actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, c); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ClaimSubmitted", id, fmt.Sprintf("policy=%s amount=%d", policyNumber, claimedAmount))
		return err
	})
}

// Verify confirms the claim's paperwork. Verifier or admin.
func (s *Service) Verify(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		if err := s.requireRole(ctx, actor, rbac.RoleVerifier); err != nil {
			return err
		}
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(c.Status, StatusVerified) {
			return fmt.Errorf("%s -> verified: %w", c.Status, ledger.ErrInvalidTransition)
		}
		c.Status = StatusVerified
		c.VerifiedBy = actor
		c.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ClaimVerified", id, "")
		return err
	})
}

// Approve settles the payable amount. Insurer or admin; the approval can
// cover at most what was claimed.
func (s *Service) Approve(ctx context.Context, actor, id string, approvedAmount int64) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		if err := s.requireRole(ctx, actor, rbac.RoleInsurer); err != nil {
			return err
		}
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(c.Status, StatusApproved) {
			return fmt.Errorf("%s -> approved: %w", c.Status, ledger.ErrInvalidTransition)
		}
		if approvedAmount <= 0 || approvedAmount > c.ClaimedAmount {
			return fmt.Errorf("approved amount out of range: %w", ledger.ErrInvalidInput)
		}
		c.Status = StatusApproved
		c.ApprovedBy = actor
		c.ApprovedAmount = approvedAmount
		c.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ClaimApproved", id, fmt.Sprintf("amount=%d", approvedAmount))
		return err
	})
}

// Reject closes a claim with a reason. Verifier, insurer, or admin; only
// before approval.
func (s *Service) Reject(ctx context.Context, actor, id, reason string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	if reason == "" {
		return fmt.Errorf("rejection needs a reason: %w", ledger.ErrInvalidInput)
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.hasAnyRole(ctx, actor, rbac.RoleVerifier, rbac.RoleInsurer, rbac.RoleAdmin, rbac.RoleSuperAdmin)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrUnauthorized
		}
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(c.Status, StatusRejected) {
			return fmt.Errorf("%s -> rejected: %w", c.Status, ledger.ErrInvalidTransition)
		}
		c.Status = StatusRejected
		c.RejectionReason = reason
		c.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ClaimRejected", id, "reason="+reason)
		return err
	})
}

// Pay marks an approved claim as disbursed. Insurer or admin.
func (s *Service) Pay(ctx context.Context, actor, id string) error {
	if id == "" {
		return ledger.ErrInvalidInput
	}
	return s.runner.InTx(ctx, func(ctx context.Context) error {
		if err := s.requireRole(ctx, actor, rbac.RoleInsurer); err != nil {
			return err
		}
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(c.Status, StatusPaid) {
			return fmt.Errorf("%s -> paid: %w", c.Status, ledger.ErrInvalidTransition)
		}
		c.Status = StatusPaid
		c.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, actor, "ClaimPaid", id, "")
		return err
	})
}

func (s *Service) requireRole(ctx context.Context, actor string, role rbac.Role) error {
	ok, err := s.hasAnyRole(ctx, actor, role, rbac.RoleAdmin, rbac.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrUnauthorized
	}
	return nil
}

// Get returns a claim to its participants: the owning patient, the
// submitter, a verifier or insurer, or an admin.
func (s *Service) Get(ctx context.Context, actor, id string) (*Claim, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed, err := s.mayRead(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ledger.ErrUnauthorized
	}
	return c, nil
}

func (s *Service) mayRead(ctx context.Context, actor string, c *Claim) (bool, error) {
	if actor == c.SubmittedBy {
		return true, nil
	}
	owner, err := s.patients.OwnerOf(ctx, c.PatientID)
	if err != nil {
		return false, err
	}
	if actor == owner {
		return true, nil
	}
	return s.hasAnyRole(ctx, actor, rbac.RoleVerifier, rbac.RoleInsurer, rbac.RoleAdmin, rbac.RoleSuperAdmin)
}

func (s *Service) ListByPatient(ctx context.Context, actor, patientID string, limit, offset int) ([]*Claim, error) {
	if patientID == "" {
		return nil, ledger.ErrInvalidInput
	}
	owner, err := s.patients.OwnerOf(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if actor != owner {
		ok, err := s.hasAnyRole(ctx, actor, rbac.RoleVerifier, rbac.RoleInsurer, rbac.RoleAdmin, rbac.RoleSuperAdmin)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ledger.ErrUnauthorized
		}
	}
	return s.repo.ListByPatient(ctx, patientID, normalizeLimit(limit), normalizeOffset(offset))
}

// ListByStatus is the processing queue. Verifier, insurer, or admin.
func (s *Service) ListByStatus(ctx context.Context, actor string, status Status, limit, offset int) ([]*Claim, error) {
	ok, err := s.hasAnyRole(ctx, actor, rbac.RoleVerifier, rbac.RoleInsurer, rbac.RoleAdmin, rbac.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrUnauthorized
	}
	return s.repo.ListByStatus(ctx, status, normalizeLimit(limit), normalizeOffset(offset))
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
