package rbac

import (
	"context"
	"fmt"

	"github.com/medledger/medledger/internal/ledger"
)

// Service enforces who may administer role membership. Role changes are not
// separately audited; workflows that change roles as a side effect own their
// audit entries.
type Service struct {
	repo RoleRepository
}

func NewService(repo RoleRepository) *Service {
	return &Service{repo: repo}
}

// canAdminister reports whether actor may grant or revoke the given role.
// Only a superadmin touches the admin and superadmin roles; admins handle
// the rest.
func (s *Service) canAdminister(ctx context.Context, actor string, role Role) (bool, error) {
	super, err := s.repo.Has(ctx, actor, RoleSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("check superadmin: %w", err)
	}
	if super {
		return true, nil
	}
	if role == RoleAdmin || role == RoleSuperAdmin {
		return false, nil
	}
	return s.repo.Has(ctx, actor, RoleAdmin)
}

func (s *Service) GrantRole(ctx context.Context, actor string, role Role, identity string) error {
	if identity == "" || !role.Valid() {
		return ledger.ErrInvalidInput
	}
	ok, err := s.canAdminister(ctx, actor, role)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrUnauthorized
	}
	return s.repo.Add(ctx, identity, role, actor)
}

func (s *Service) RevokeRole(ctx context.Context, actor string, role Role, identity string) error {
	if identity == "" || !role.Valid() {
		return ledger.ErrInvalidInput
	}
	ok, err := s.canAdminister(ctx, actor, role)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrUnauthorized
	}

	// The superadmin role may only be shed by its own holder, and only once
	// a successor superadmin exists.
	if role == RoleSuperAdmin {
		if actor != identity {
			return ledger.ErrUnauthorized
		}
		holders, err := s.repo.CountHolders(ctx, RoleSuperAdmin)
		if err != nil {
			return fmt.Errorf("count superadmins: %w", err)
		}
		if holders < 2 {
			return ledger.ErrInvalidTransition
		}
	}

	removed, err := s.repo.Remove(ctx, identity, role)
	if err != nil {
		return err
	}
	if !removed {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Service) HasRole(ctx context.Context, role Role, identity string) (bool, error) {
	if identity == "" || !role.Valid() {
		return false, nil
	}
	return s.repo.Has(ctx, identity, role)
}

// RolesOf lists the roles an identity currently holds.
func (s *Service) RolesOf(ctx context.Context, identity string) ([]Role, error) {
	return s.repo.ListRoles(ctx, identity)
}

// Bootstrap seeds the initial superadmin. Idempotent; refuses to run once
// any superadmin exists so it cannot be used to sidestep the registry.
func (s *Service) Bootstrap(ctx context.Context, identity string) error {
	if identity == "" {
		return ledger.ErrInvalidInput
	}
	holders, err := s.repo.CountHolders(ctx, RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("count superadmins: %w", err)
	}
	if holders > 0 {
		has, err := s.repo.Has(ctx, identity, RoleSuperAdmin)
		if err != nil {
			return err
		}
		if has {
			return nil
		}
		return ledger.ErrUnauthorized
	}
	return s.repo.Add(ctx, identity, RoleSuperAdmin, identity)
}
