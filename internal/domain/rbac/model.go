// Package rbac is the identity and role registry. Every other store
// receives it as an explicit dependency and consults it before mutating
// anything; nothing else in the system decides who may act.
package rbac

import "time"

// Role is a named capability grant held by zero or more identities.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RolePharmacist Role = "pharmacist"
	RoleVerifier   Role = "verifier"
	RoleInsurer    Role = "insurer"
)

var knownRoles = map[Role]bool{
	RoleSuperAdmin: true,
	RoleAdmin:      true,
	RoleDoctor:     true,
	RolePatient:    true,
	RolePharmacist: true,
	RoleVerifier:   true,
	RoleInsurer:    true,
}

// Valid reports whether the role is one of the registry's known roles.
func (r Role) Valid() bool { return knownRoles[r] }

// Assignment is one (identity, role) membership row.
type Assignment struct {
	Identity  string    `db:"identity" json:"identity"`
	Role      Role      `db:"role" json:"role"`
	GrantedBy string    `db:"granted_by" json:"granted_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
