package rbac

import "context"

type RoleRepository interface {
	// Add records a role membership; adding an existing membership is a no-op.
	Add(ctx context.Context, identity string, role Role, grantedBy string) error
	// Remove deletes a membership and reports whether it existed.
	Remove(ctx context.Context, identity string, role Role) (bool, error)
	Has(ctx context.Context, identity string, role Role) (bool, error)
	CountHolders(ctx context.Context, role Role) (int, error)
	ListRoles(ctx context.Context, identity string) ([]Role, error)
}
